package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"posterstudio/internal/domain"
	"posterstudio/internal/sqlinline"
)

func TestGenerationRepositoryCreate(t *testing.T) {
	now := time.Now().UTC()
	sql := &fakeSQL{row: []any{"g-1", now, now}}
	repo := NewGenerationRepository(sql)

	g, err := repo.Create(context.Background(), "u-1", "t-1", domain.GenerationInput{Title: "Rex"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if g.ID != "g-1" || g.Status != domain.StatusQueued || g.ThemeID == nil || *g.ThemeID != "t-1" {
		t.Fatalf("unexpected generation: %+v", g)
	}
	raw, ok := sql.lastArgs()[2].([]byte)
	if !ok {
		t.Fatalf("input should be passed as JSON bytes, got %T", sql.lastArgs()[2])
	}
	var input map[string]string
	if err := json.Unmarshal(raw, &input); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	if input["title"] != "Rex" {
		t.Fatalf("unexpected input payload: %s", raw)
	}
	if _, present := input["subtitle"]; present {
		t.Fatalf("empty fields should be omitted: %s", raw)
	}
}

func TestGenerationRepositoryTransitions(t *testing.T) {
	tests := []struct {
		name  string
		call  func(*GenerationRepositoryPG) error
		query string
	}{
		{
			name:  "generating",
			call:  func(r *GenerationRepositoryPG) error { return r.MarkGenerating(context.Background(), "g-1", "prompt", "u/p.jpg") },
			query: sqlinline.QMarkGenerationGenerating,
		},
		{
			name:  "succeeded",
			call:  func(r *GenerationRepositoryPG) error { return r.MarkSucceeded(context.Background(), "g-1", "u/g-1.png", 1024, 1280) },
			query: sqlinline.QMarkGenerationSucceeded,
		},
		{
			name:  "failed",
			call:  func(r *GenerationRepositoryPG) error { return r.MarkFailed(context.Background(), "g-1", "boom") },
			query: sqlinline.QMarkGenerationFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok := &fakeSQL{execTag: pgconn.NewCommandTag("UPDATE 1")}
			if err := tc.call(NewGenerationRepository(ok)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok.queries[0] != tc.query {
				t.Fatalf("unexpected query")
			}
			if ok.lastArgs()[0] != "g-1" {
				t.Fatalf("id should be the first argument, got %#v", ok.lastArgs())
			}

			stale := &fakeSQL{execTag: pgconn.NewCommandTag("UPDATE 0")}
			if err := tc.call(NewGenerationRepository(stale)); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestGenerationRepositoryGetForUser(t *testing.T) {
	now := time.Now().UTC()
	themeID := "t-1"
	path := "u-1/g-1.png"
	width, height := 1024, 1280
	sql := &fakeSQL{row: []any{
		"g-1", "u-1", &themeID, "succeeded", []byte(`{"title":"Rex"}`), nil, nil,
		&path, &width, &height, nil, now, now,
	}}

	g, err := NewGenerationRepository(sql).GetForUser(context.Background(), "g-1", "u-1")
	if err != nil {
		t.Fatalf("GetForUser error: %v", err)
	}
	if g.Status != domain.StatusSucceeded || g.Input.Title != "Rex" {
		t.Fatalf("unexpected generation: %+v", g)
	}
	if g.ResultImagePath == nil || *g.ResultImagePath != path || *g.ImageWidth != 1024 {
		t.Fatalf("unexpected result fields: %+v", g)
	}
	if g.Error != nil {
		t.Fatalf("expected nil error column")
	}
	if args := sql.lastArgs(); args[1] != "u-1" {
		t.Fatalf("query must be scoped by user, args %#v", args)
	}

	if _, err := NewGenerationRepository(&fakeSQL{}).GetForUser(context.Background(), "g-1", "u-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerationRepositoryListForUser(t *testing.T) {
	now := time.Now().UTC()
	path := "u-1/g-1.png"
	sql := &fakeSQL{rows: [][]any{
		{"g-2", "failed", nil, now},
		{"g-1", "succeeded", &path, now.Add(-time.Minute)},
	}}

	items, err := NewGenerationRepository(sql).ListForUser(context.Background(), "u-1", 25)
	if err != nil {
		t.Fatalf("ListForUser error: %v", err)
	}
	if len(items) != 2 || items[0].Status != domain.StatusFailed || items[1].ResultImagePath == nil {
		t.Fatalf("unexpected items: %+v", items)
	}
	if sql.lastArgs()[1] != 25 {
		t.Fatalf("limit not forwarded: %#v", sql.lastArgs())
	}
}
