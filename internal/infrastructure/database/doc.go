// Package database provides the SQLite connection used for the register
// write audit trail.
//
// Open applies WAL mode and a busy timeout and limits the pool to a single
// connection. Migrate applies versioned up/down SQL files from an fs.FS,
// normally the embedded migrations package:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is created
// with mode 0600.
package database
