//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const completeProfile = `first_name: Ada
last_name: Lovelace
email: ada@example.org
phone: "+44 20 7946 0000"
location: London, UK
resume_path: /home/ada/resume.pdf
experience_summary: |
  Analyst and engineer.
`

const placeholderProfile = `first_name: Ada
last_name: Lovelace
email: your.email@example.com
phone: "+1-555-010-5555"
location: London, UK
resume_path: /home/ada/resume.pdf
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckProfile_Complete(t *testing.T) {
	path := writeProfile(t, completeProfile)

	var buf bytes.Buffer
	require.NoError(t, checkProfile(&buf, path))
	assert.Contains(t, buf.String(), "is complete (Ada Lovelace)")
}

func TestCheckProfile_Missing(t *testing.T) {
	path := writeProfile(t, placeholderProfile)

	var buf bytes.Buffer
	err := checkProfile(&buf, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 required fields missing")
	assert.Contains(t, buf.String(), "  email\n  phone\n  experience_summary\n")
}

func TestCheckProfile_NoFile(t *testing.T) {
	err := checkProfile(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile: read")
}

func TestLoadProfile_WarnsButLoads(t *testing.T) {
	path := writeProfile(t, placeholderProfile)
	core, logs := observer.New(zapcore.WarnLevel)

	var buf bytes.Buffer
	p, err := loadProfile(&buf, path, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Contains(t, buf.String(), "is missing email, phone, experience_summary.")
	assert.Equal(t, 1, logs.FilterMessage("applicant profile is incomplete").Len())
}

func TestLoadProfile_Error(t *testing.T) {
	_, err := loadProfile(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat: load profile")
}
