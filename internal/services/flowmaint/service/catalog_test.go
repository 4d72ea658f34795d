package service

import (
	"context"
	"errors"
	"testing"

	perr "flowkeeper/internal/platform/errors"
)

func TestCatalog_ListParsesAndSorts(t *testing.T) {
	m := newMemRepo()
	m.addTable(prefix+"2024069", "heap")
	m.addTable(prefix+"2024070", "heap")
	m.addTable(prefix+"202407012", "heap")
	m.addTable(prefix+"backup", "heap")
	m.addTable(prefix+"2024070_old", "heap")

	parts, err := Catalog{Repo: m}.List(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range parts {
		names = append(names, p.Suffix)
	}
	want := []string{"202407012", "2024070", "2024069"}
	if len(names) != len(want) {
		t.Fatalf("suffixes = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("suffixes = %v, want %v", names, want)
		}
	}
}

func TestCatalog_Unavailable(t *testing.T) {
	m := newMemRepo()
	m.failList = errors.New("connection refused")
	if _, err := (Catalog{Repo: m}).List(context.Background(), prefix); !perr.IsCode(err, perr.ErrorCodeCatalogUnavailable) {
		t.Fatalf("List err = %v", err)
	}
	m.failExists = errors.New("connection refused")
	if _, err := (Catalog{Repo: m}).Exists(context.Background(), "x"); !perr.IsCode(err, perr.ErrorCodeCatalogUnavailable) {
		t.Fatalf("Exists err = %v", err)
	}
}
