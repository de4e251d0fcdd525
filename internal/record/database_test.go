package record

import (
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/busmap-core/internal/devbus"
)

func TestDatabase_AddGetList(t *testing.T) {
	db := NewDatabase()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := db.Add(Config{Name: name, Kind: KindInput}); err != nil {
			t.Fatalf("Add(%q) error = %v", name, err)
		}
	}

	if _, err := db.Add(Config{Name: "alpha", Kind: KindInput}); !errors.Is(err, ErrRecordExists) {
		t.Errorf("duplicate Add() error = %v, want ErrRecordExists", err)
	}
	if _, err := db.Add(Config{Name: "", Kind: KindInput}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Add(invalid) error = %v, want ErrInvalidRecord", err)
	}
	if _, err := db.Get("missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrRecordNotFound", err)
	}

	list := db.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(list) != len(want) {
		t.Fatalf("List() len = %d, want %d", len(list), len(want))
	}
	for i, rec := range list {
		if rec.Name() != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, rec.Name(), want[i])
		}
	}
}

func TestDatabase_BindAllContinuesPastFailures(t *testing.T) {
	reg, _ := newBus(t)
	db := NewDatabase()

	cfgs := []Config{
		{Name: "good", Kind: KindInput, Link: "@dev+4"},
		{Name: "baddev", Kind: KindInput, Link: "@nodev"},
		{Name: "badmethod", Kind: KindOutput, Link: "@dev,be64"},
		{Name: "pini", Kind: KindOutput, Link: "@dev+8", PINI: true},
	}
	for _, cfg := range cfgs {
		if _, err := db.Add(cfg); err != nil {
			t.Fatalf("Add(%q) error = %v", cfg.Name, err)
		}
	}

	err := db.BindAll(reg)
	if !errors.Is(err, devbus.ErrDeviceNotFound) || !errors.Is(err, devbus.ErrUnknownStrategy) {
		t.Fatalf("BindAll() error = %v, want both bind failures joined", err)
	}

	for name, wantBound := range map[string]bool{
		"good": true, "baddev": false, "badmethod": false, "pini": true,
	} {
		rec, _ := db.Get(name)
		if rec.IsBound() != wantBound {
			t.Errorf("%s bound = %v, want %v", name, rec.IsBound(), wantBound)
		}
	}

	rec, _ := db.Get("pini")
	if _, alarm := rec.Value(); alarm != NoAlarm {
		t.Errorf("PINI record alarm = %v, want NO_ALARM after initial processing", alarm)
	}
}

func TestDatabase_WriteObservers(t *testing.T) {
	reg, base := newBus(t)
	db := NewDatabase()

	var (
		mu     sync.Mutex
		events []WriteEvent
	)
	db.OnWrite(func(ev WriteEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	if _, err := db.Add(Config{Name: "out", Kind: KindOutput, Link: "@dev+0xc,le32", Mask: 0xFF}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := db.BindAll(reg); err != nil {
		t.Fatalf("BindAll() error = %v", err)
	}

	if _, err := db.Write("out", 0x42, "api"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := db.Write("nope", 1, "api"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Write(nope) error = %v, want ErrRecordNotFound", err)
	}

	if len(events) != 1 {
		t.Fatalf("observed %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Record != "out" || ev.Value != 0x42 || ev.Mask != 0xFF || ev.Source != "api" || ev.Err != nil {
		t.Errorf("event = %+v", ev)
	}
	if ev.Address != base.Add(0xc).String() {
		t.Errorf("event address = %s, want %s", ev.Address, base.Add(0xc))
	}
}
