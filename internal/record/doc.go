// Package record adapts device links to named input and output points.
//
// A Record owns one link descriptor, an optional bit mask and an alarm
// state. Records are bound once at start-up (Database.BindAll) and then
// processed periodically by the scanner or written on demand by the API and
// the MQTT bridge.
//
// Output records without PINI adopt the register's current masked value at
// bind time, so that a restart does not clobber hardware state. Writes to a
// masked output only touch the masked bits, using the device's
// read-modify-write lock.
package record
