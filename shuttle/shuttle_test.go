package shuttle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tt-commander/types"
)

const tt04Index = `{"projects":[
 {"macro":"tt_um_zeta","address":12,"title":"Zeta counter","repo":"https://github.com/a/zeta","clock_hz":10000000},
 {"macro":"tt_um_chip_rom","address":0,"title":"chip ROM","repo":"https://github.com/b/rom","clock_hz":0},
 {"macro":"tt_um_alpha","address":5,"title":"Alpha VGA","repo":"https://github.com/c/vga","clock_hz":25175000}
]}`

func TestClientLoadSortsByTitle(t *testing.T) {
	var gotPath, gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tt04Index))
	}))
	defer srv.Close()

	projects, err := NewClient(srv.URL+"/").Load(context.Background(), "tt04")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gotPath != "/tt04.json" || gotFields != "title,repo,address,macro,clock_hz" {
		t.Fatalf("unexpected request %s fields=%s", gotPath, gotFields)
	}
	var titles []string
	for _, p := range projects {
		titles = append(titles, p.Title)
	}
	want := []string{"Alpha VGA", "chip ROM", "Zeta counter"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("unexpected order %q", titles)
		}
	}
	if projects[0].Address != 5 || projects[0].ClockHz != 25_175_000 || projects[0].Macro != "tt_um_alpha" {
		t.Fatalf("unexpected project %+v", projects[0])
	}
}

func TestClientLoadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := NewClient(srv.URL).Load(context.Background(), "tt99"); err == nil {
		t.Fatalf("expected error for missing shuttle")
	}
}

type stubLoader struct {
	projects []types.Project
	err      error
}

func (l stubLoader) Load(ctx context.Context, id string) ([]types.Project, error) {
	return l.projects, l.err
}

func TestStoreLoad(t *testing.T) {
	store := NewStore(stubLoader{projects: []types.Project{{Address: 3, Title: "Three"}}}, nil)
	var mu sync.Mutex
	var updates []types.ShuttleInfo
	store.OnChange(func(info types.ShuttleInfo) {
		mu.Lock()
		updates = append(updates, info)
		mu.Unlock()
	})

	store.Load(context.Background(), "tt05")
	info := store.Info()
	if info.ID != "tt05" || info.Loading || len(info.Projects) != 1 {
		t.Fatalf("unexpected info %+v", info)
	}
	if p, ok := store.Project(3); !ok || p.Title != "Three" {
		t.Fatalf("project lookup failed")
	}
	if _, ok := store.Project(4); ok {
		t.Fatalf("unexpected project at 4")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 || !updates[0].Loading || updates[1].Loading {
		t.Fatalf("unexpected updates %+v", updates)
	}
}

func TestStoreLoadError(t *testing.T) {
	store := NewStore(stubLoader{err: errors.New("offline")}, nil)
	store.Load(context.Background(), "tt06")
	info := store.Info()
	if info.Loading || info.Error != "offline" || len(info.Projects) != 0 {
		t.Fatalf("unexpected info %+v", info)
	}
}
