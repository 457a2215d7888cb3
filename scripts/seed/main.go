package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/catalogsync"
	"github.com/guanabara/catalog-sync/internal/erp"
	"github.com/guanabara/catalog-sync/internal/platform/db"
)

// Seeds a local catalog so the storefront endpoints work without vendor
// credentials.
func main() {
	ctx := context.Background()
	dir := getenv("CATALOG_DATA_DIR", "data")
	store := catalog.NewFileStore(dir, getenv("CATALOG_FILE", "products.json"), getenv("SYNC_SNAPSHOT_FILE", "varejo-facil-sync.json"))

	fmt.Println("→ Seeding catalog...")
	started := time.Now().UTC()
	snap, records := sampleCatalog(started)
	if err := store.Save(records, snap); err != nil {
		log.Fatalf("save catalog: %v", err)
	}
	fmt.Printf("  %d products written to %s\n", len(records), store.CatalogPath())

	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		fmt.Println("→ Seeding sync history...")
		if err := seedHistory(ctx, dsn, snap, started); err != nil {
			log.Fatalf("seed history: %v", err)
		}
	}

	if token := os.Getenv("SEED_ADMIN_TOKEN"); token != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash admin token: %v", err)
		}
		fmt.Printf("→ ADMIN_TOKEN_HASH=%s\n", hash)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func sampleCatalog(at time.Time) (catalog.Snapshot, []catalog.Record) {
	sections := []erp.Lookup{{ID: 1, Descricao: "MERCEARIA"}, {ID: 2, Descricao: "BEBIDAS"}, {ID: 3, Descricao: "LIMPEZA"}}
	brands := []erp.Lookup{{ID: 10, Descricao: "CAMIL"}, {ID: 11, Descricao: "GUARANÁ ANTARCTICA"}, {ID: 12, Descricao: "YPÊ"}}
	genres := []erp.Lookup{{ID: 20, Descricao: "ALIMENTO"}}
	groups := []erp.Group{{ID: 100, SecaoID: 1, Descricao: "GRÃOS"}, {ID: 200, SecaoID: 2, Descricao: "REFRIGERANTES"}}
	products := []erp.Product{
		{ID: 1, Descricao: "ARROZ TIPO 1 5KG", SecaoID: 1, GrupoID: 100, MarcaID: 10, GeneroID: 20, UnidadeDeVenda: "FD"},
		{ID: 2, Descricao: "FEIJÃO CARIOCA 1KG", SecaoID: 1, GrupoID: 100, MarcaID: 10, GeneroID: 20, UnidadeDeVenda: "UN"},
		{ID: 3, Descricao: "REFRIGERANTE 2L", SecaoID: 2, GrupoID: 200, MarcaID: 11, UnidadeDeVenda: "UN"},
		{ID: 4, Descricao: "DETERGENTE 500ML", SecaoID: 3, MarcaID: 12, UnidadeDeVenda: "UN"},
	}
	prices := []erp.Price{
		{ProdutoID: 1, PrecoVenda1: 28.90, PrecoOferta1: 24.90, PrecoVenda2: 27.50, QuantidadeMinimaPreco2: 5},
		{ProdutoID: 2, PrecoVenda1: 8.49},
		{ProdutoID: 3, PrecoVenda1: 9.99, PrecoOferta1: 7.99},
		{ProdutoID: 4, PrecoVenda1: 2.79},
	}

	lookups := catalog.NewLookups(prices, sections, brands, genres, groups)
	records := lookups.FlattenAll(products)
	snap := catalog.Snapshot{
		RunID:    uuid.NewString(),
		Trigger:  "seed",
		LastSync: at,
		Totals: catalog.Totals{
			Products: len(products),
			Prices:   len(prices),
			Sections: len(sections),
			Brands:   len(brands),
			Genres:   len(genres),
			Groups:   len(groups),
		},
		Warnings: []string{},
	}
	return snap, records
}

func seedHistory(ctx context.Context, dsn string, snap catalog.Snapshot, started time.Time) error {
	pool, err := db.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	history := catalogsync.NewPGHistory(pool, catalogsync.DefaultHistoryLimit)
	if err := history.EnsureSchema(ctx); err != nil {
		return err
	}
	finished := time.Now().UTC()
	return history.Record(ctx, catalogsync.Result{
		RunID:          snap.RunID,
		Trigger:        snap.Trigger,
		Status:         catalogsync.StatusSuccess,
		StartedAt:      started,
		FinishedAt:     finished,
		DurationMillis: finished.Sub(started).Milliseconds(),
		Totals:         snap.Totals,
		Warnings:       []string{},
	})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
