package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/presets"
)

// pngHeader is enough for type sniffing.
var readyStatus = string(mediasaver.EntryStatusReady)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0644))
	return path
}

func TestSourceRef(t *testing.T) {
	ref, err := sourceRef("https://example.com/cat.png")
	require.NoError(t, err)
	assert.Equal(t, mediasaver.ImageRef("https://example.com/cat.png"), ref)

	ref, err = sourceRef("cat.png")
	require.NoError(t, err)
	path, ok := ref.FilePath()
	require.True(t, ok)
	assert.True(t, filepath.IsAbs(path))
}

func TestRunModern(t *testing.T) {
	t.Setenv("STORAGE_URL", "file://"+t.TempDir())
	source := writeSource(t)

	var out bytes.Buffer
	err := run(context.Background(), options{mimeType: "image/png"}, source, &out)
	require.NoError(t, err)

	var entry mediasaver.MediaEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "cat.png", entry.DisplayName)
	assert.Equal(t, "image/png", entry.MimeType)
	assert.Equal(t, "fs", entry.StorageBackendName)
}

func TestRunLegacyNeedsGrant(t *testing.T) {
	external := t.TempDir()
	t.Setenv("EXTERNAL_DIR", external)
	t.Setenv("TEMP_DIR", t.TempDir())
	source := writeSource(t)

	var out bytes.Buffer
	err := run(context.Background(), options{apiLevel: 28, mimeType: "image/png"}, source, &out)
	assert.ErrorIs(t, err, mediasaver.ErrPermissionRequired)
	assert.Empty(t, out.String())

	err = run(context.Background(), options{apiLevel: 28, mimeType: "image/png", grant: true}, source, &out)
	require.NoError(t, err)

	var entry mediasaver.MediaEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	require.NotEmpty(t, entry.DataPath)
	assert.True(t, filepath.IsAbs(entry.DataPath))
	saved, err := os.ReadFile(entry.DataPath)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, saved)
}

func TestRunIgnoresNonImages(t *testing.T) {
	err := run(context.Background(), options{mimeType: "text/plain"}, writeSource(t), &bytes.Buffer{})
	assert.ErrorIs(t, err, mediasaver.ErrShareIgnored)
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	svc, _ := presets.NewTesting(t)

	var out bytes.Buffer
	require.NoError(t, audit(ctx, svc, readyStatus, &out))
	assert.Contains(t, out.String(), `"TotalFound": 0`)

	require.NoError(t, svc.ReceiveShare(ctx, mediasaver.ShareIntent{
		Action: mediasaver.ActionSend,
		Type:   "image/png",
		Stream: mediasaver.FileRef(writeSource(t)),
	}))
	_, err := svc.Save(ctx)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, audit(ctx, svc, readyStatus, &out))
	assert.Contains(t, out.String(), `"TotalProcessed": 1`)
}

func TestAuditSkipsFailedSaves(t *testing.T) {
	ctx := context.Background()
	svc, _ := presets.NewTesting(t)

	require.NoError(t, svc.ReceiveShare(ctx, mediasaver.ShareIntent{
		Action: mediasaver.ActionSend,
		Type:   "image/png",
		Stream: mediasaver.FileRef(filepath.Join(t.TempDir(), "missing.png")),
	}))
	_, err := svc.Save(ctx)
	require.ErrorIs(t, err, mediasaver.ErrCopyFailed)

	var out bytes.Buffer
	require.NoError(t, audit(ctx, svc, readyStatus, &out))
	assert.Contains(t, out.String(), `"TotalFound": 0`)

	out.Reset()
	assert.ErrorIs(t, audit(ctx, svc, "", &out), errAuditFailed)
	assert.Contains(t, out.String(), `"TotalFailed": 1`)
}
