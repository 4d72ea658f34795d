package service

import (
	"context"
	"errors"
	"testing"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/services/flowmaint/domain"
)

func TestPrune_StrictlyBeforeCutoff(t *testing.T) {
	m := newMemRepo()
	for _, s := range []string{"2024068", "2024069", "2024070", "2024071", "2023360"} {
		m.addTable(prefix+s, "heap")
	}
	cutoff := domain.CutoffFor(2024, 100, 30, domain.Daily)

	dropped, err := Pruner{Catalog: Catalog{Repo: m}, Repo: m}.Prune(context.Background(), prefix, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(dropped) != 3 {
		t.Fatalf("dropped = %v", dropped)
	}
	if !m.has(prefix+"2024070") || !m.has(prefix+"2024071") {
		t.Fatal("partitions at or after the cutoff must survive")
	}
	for _, s := range []string{"2024068", "2024069", "2023360"} {
		if m.has(prefix + s) {
			t.Fatalf("%s should be dropped", s)
		}
	}
}

func TestPrune_FailureDoesNotStopOthers(t *testing.T) {
	m := newMemRepo()
	m.addTable(prefix+"2024001", "heap")
	m.addTable(prefix+"2024002", "heap")
	m.addTable(prefix+"2024003", "heap")
	m.failDrop[prefix+"2024002"] = errors.New("lock timeout")

	p := Pruner{Catalog: Catalog{Repo: m}, Repo: m}
	dropped, err := p.Prune(context.Background(), prefix, domain.CutoffFor(2024, 50, 0, domain.Daily))
	if !perr.IsCode(err, perr.ErrorCodeDropFailed) {
		t.Fatalf("err = %v", err)
	}
	if len(dropped) != 2 || !m.has(prefix+"2024002") {
		t.Fatalf("dropped = %v", dropped)
	}

	// the survivor is still expired and goes on the next pass
	delete(m.failDrop, prefix+"2024002")
	dropped, err = p.Prune(context.Background(), prefix, domain.CutoffFor(2024, 50, 0, domain.Daily))
	if err != nil || len(dropped) != 1 {
		t.Fatalf("retry dropped = %v, %v", dropped, err)
	}
}

func TestPrune_CatalogFailureDropsNothing(t *testing.T) {
	m := newMemRepo()
	m.addTable(prefix+"2020001", "heap")
	m.failList = errors.New("down")
	_, err := Pruner{Catalog: Catalog{Repo: m}, Repo: m}.Prune(context.Background(), prefix, domain.CutoffFor(2024, 1, 0, domain.Daily))
	if !perr.IsCode(err, perr.ErrorCodeCatalogUnavailable) || len(m.drops) != 0 {
		t.Fatalf("err = %v drops = %v", err, m.drops)
	}
}

func TestPrune_HourlyCutoff(t *testing.T) {
	m := newMemRepo()
	m.addTable(prefix+"202406923", "heap")
	m.addTable(prefix+"202407000", "heap")
	m.addTable(prefix+"202407001", "heap")

	cutoff := domain.CutoffFor(2024, 100, 30, domain.Hourly)
	dropped, err := Pruner{Catalog: Catalog{Repo: m}, Repo: m}.Prune(context.Background(), prefix, cutoff)
	if err != nil || len(dropped) != 1 || dropped[0] != prefix+"202406923" {
		t.Fatalf("dropped = %v, %v", dropped, err)
	}
}
