package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"docmapper/internal/analyze"
)

const shopPkg = "docmapper/examples/shop"

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestScan_YAML(t *testing.T) {
	stdout, _, err := run(t, "scan", shopPkg)
	require.NoError(t, err)

	var report analyze.Report
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &report))

	order, ok := report.Find("shop.Order")
	require.True(t, ok)
	assert.Equal(t, analyze.RoleEntity, order.Role)
	assert.Equal(t, "orders", order.Collection)

	product, ok := report.Find("shop.Product")
	require.True(t, ok)
	assert.Contains(t, product.SortedKeys(), "inventoryCount")

	card, ok := report.Find("shop.CardPayment")
	require.True(t, ok)
	assert.Equal(t, "card", card.Discriminator)
}

func TestScan_Table(t *testing.T) {
	stdout, _, err := run(t, "scan", "--format", "table", shopPkg)
	require.NoError(t, err)

	assert.Contains(t, stdout, "shop.Order (orders, shop.Order)")
	assert.Contains(t, stdout, "alsoload=price")
}

func TestScan_Errors(t *testing.T) {
	_, _, err := run(t, "scan", "--format", "xml", shopPkg)
	assert.ErrorContains(t, err, `unknown format "xml"`)

	_, _, err = run(t, "scan", "docmapper/examples/does-not-exist")
	assert.Error(t, err)

	bad := writeFile(t, "mapping.yaml", "config:\n  discriminatorKey: \"$t\"\n")
	_, _, err = run(t, "--config", bad, "scan", shopPkg)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestScan_Debug(t *testing.T) {
	_, stderr, err := run(t, "scan", "--debug", shopPkg)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Order")
}

func TestCheck(t *testing.T) {
	stdout, _, err := run(t, "check", shopPkg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok")

	good := writeFile(t, "mapping.yaml", `
types:
  - type: shop.Order
    collection: purchases
    fields:
      Status:
        name: state
`)
	_, _, err = run(t, "--config", good, "check", shopPkg)
	assert.NoError(t, err)

	bad := writeFile(t, "mapping.toml", `
[[types]]
type = "shop.Order"

[types.fields.Stauts]
name = "state"
`)
	stdout, _, err = run(t, "--config", bad, "check", shopPkg)
	require.Error(t, err)
	assert.Contains(t, stdout, "Stauts")
	assert.Contains(t, stdout, `did you mean "Status"`)
}
