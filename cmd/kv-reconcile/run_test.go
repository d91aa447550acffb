package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sipenduk/internal/repository"
	"sipenduk/internal/service"
	"sipenduk/internal/store"
)

func newTestReconcile(t *testing.T) (service.ReconcileService, repository.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("penduduk:1", `{"id":1,"nik":"3201000000000001","nama":"Budi","jenis_kelamin":"L"}`))
	require.NoError(t, mr.Set("penduduk:2", `{"id":2,"nik":"3201000000000002","nama":"Ani","jenis_kelamin":"P"}`))
	require.NoError(t, mr.Set("pindah:1", `{"id":1,"penduduk_id":2,"tanggal":"2024-01-15","alasan":"Kerja","tujuan":"Jakarta"}`))

	st := repository.NewMemoryStore()
	logger, _ := zap.NewDevelopment()
	return service.NewReconcileService(st, store.NewRedisKV(client), logger), st
}

func TestRunImport_DryRunText(t *testing.T) {
	svc, st := newTestReconcile(t)
	var out bytes.Buffer

	require.NoError(t, runImport(t.Context(), svc, true, false, &out))
	assert.Contains(t, out.String(), "dry run")
	assert.Contains(t, out.String(), "penduduk")
	assert.Contains(t, out.String(), "imported=2")

	_, total, err := st.Repos().Residents.ListResidents(t.Context(), repository.ResidentFilters{}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestRunImport_JSON(t *testing.T) {
	svc, _ := newTestReconcile(t)
	var out bytes.Buffer

	require.NoError(t, runImport(t.Context(), svc, false, true, &out))
	var report service.ImportReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.False(t, report.DryRun)
	assert.Equal(t, 2, report.Entities[service.LegacyResidents].Imported)
	assert.Equal(t, 1, report.Entities[service.LegacyDepartures].Imported)
	require.Len(t, report.Corrections, 1)
	assert.Equal(t, "relocated", report.Corrections[0].To)
}

func TestRunRepair_Consistent(t *testing.T) {
	svc, _ := newTestReconcile(t)
	require.NoError(t, runImport(t.Context(), svc, false, true, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, runRepair(t.Context(), svc, true, false, &out))
	assert.Contains(t, out.String(), "all residents consistent")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"import", "repair"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("dry-run"))
}
