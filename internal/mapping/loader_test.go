package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"docmapper/descriptor"
	"docmapper/options"
)

const orderYAML = `
version: "1"
config:
  storeEmpties: true
  discriminatorKey: _t
types:
  - type: shop.Order
    collection: purchases
    alwaysDiscriminator: true
    fields:
      Customer:
        reference: true
        idOnly: true
      Status:
        name: state
        alsoLoad: status
      TotalCents:
        alsoLoad: [total, amount]
        final: false
    ignore: OrderedAt
  - type: docmapper/examples/shop.Product
    discriminator: product
`

const orderTOML = `
version = "1"

[config]
storeEmpties = true
discriminatorKey = "_t"

[[types]]
type = "shop.Order"
collection = "purchases"
alwaysDiscriminator = true
ignore = ["OrderedAt"]

[types.fields.Customer]
reference = true
idOnly = true

[types.fields.Status]
name = "state"
alsoLoad = ["status"]

[types.fields.TotalCents]
alsoLoad = ["total", "amount"]
final = false

[[types]]
type = "docmapper/examples/shop.Product"
discriminator = "product"
`

func boolPtr(b bool) *bool { return &b }

func wantOrderFile() *MappingFile {
	return &MappingFile{
		Version: "1",
		Config:  &options.Config{StoreEmpties: true, DiscriminatorKey: "_t"},
		Types: []TypeMapping{
			{
				Type:                "shop.Order",
				Collection:          "purchases",
				AlwaysDiscriminator: boolPtr(true),
				Fields: map[string]FieldMapping{
					"Customer":   {Reference: boolPtr(true), IDOnly: boolPtr(true)},
					"Status":     {Name: "state", AlsoLoad: StringOrArray{"status"}},
					"TotalCents": {AlsoLoad: StringOrArray{"total", "amount"}, Final: boolPtr(false)},
				},
				Ignore: StringOrArray{"OrderedAt"},
			},
			{
				Type:          "docmapper/examples/shop.Product",
				Discriminator: "product",
				Fields:        map[string]FieldMapping{},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{name: "yaml", data: orderYAML, format: FormatYAML},
		{name: "toml", data: orderTOML, format: FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mf, err := ParseFormat([]byte(tt.data), tt.format)
			require.NoError(t, err)

			if diff := cmp.Diff(wantOrderFile(), mf); diff != "" {
				t.Errorf("mapping file mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	mf, err := Parse([]byte("types:\n  - type: ' shop.Order '\n"))
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, mf.Version)
	assert.Nil(t, mf.Config)
	require.Len(t, mf.Types, 1)
	assert.Equal(t, "shop.Order", mf.Types[0].Type)
	assert.NotNil(t, mf.Types[0].Fields)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   string
	}{
		{name: "bad yaml", data: "types: [", format: FormatYAML, want: "failed to parse mapping YAML"},
		{name: "map as alsoLoad", data: "types:\n  - type: a.B\n    fields:\n      X:\n        alsoLoad: {a: b}\n", format: FormatYAML, want: "expected string or array"},
		{name: "bad toml", data: "version = ", format: FormatTOML, want: "failed to parse mapping TOML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormat([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatOf("mapping.TOML"))
	assert.Equal(t, FormatYAML, FormatOf("mapping.yml"))
	assert.Equal(t, FormatYAML, FormatOf("mapping"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(orderYAML), 0o600))
	tomlPath := filepath.Join(dir, "mapping.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(orderTOML), 0o600))

	fromYAML, err := LoadFile(yamlPath)
	require.NoError(t, err)
	fromTOML, err := LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(fromYAML, fromTOML))

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read mapping file")
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, WriteFile(wantOrderFile(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alsoLoad: status\n", "single values are written as scalars")

	back, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(wantOrderFile(), back))
}

func TestMappingFile_ToOverrides(t *testing.T) {
	mf := wantOrderFile()
	ov := mf.ToOverrides()

	require.Contains(t, ov, "shop.Order")
	order := ov["shop.Order"]
	assert.Equal(t, "purchases", order.Collection)
	assert.Equal(t, boolPtr(true), order.AlwaysDiscriminator)
	assert.Nil(t, order.NoDiscriminator)

	assert.Equal(t, descriptor.FieldOverride{Reference: boolPtr(true), IDOnly: boolPtr(true)}, order.Fields["Customer"])
	assert.Equal(t, []string{"total", "amount"}, order.Fields["TotalCents"].AlsoLoad)
	assert.Equal(t, boolPtr(true), order.Fields["OrderedAt"].Transient)

	assert.Equal(t, "product", ov["docmapper/examples/shop.Product"].Discriminator)

	tm, ok := mf.Find("shop.Order")
	require.True(t, ok)
	assert.Equal(t, []string{"Customer", "OrderedAt", "Status", "TotalCents"}, tm.FieldNames())

	_, ok = mf.Find("shop.Missing")
	assert.False(t, ok)
}

func TestMappingFile_MergedConfig(t *testing.T) {
	base := options.Default()
	base.StoreNulls = true

	cfg, err := wantOrderFile().MergedConfig(base)
	require.NoError(t, err)

	assert.True(t, cfg.StoreNulls, "the overlay does not clear options")
	assert.True(t, cfg.StoreEmpties)
	assert.Equal(t, "_t", cfg.DiscriminatorKey)
	assert.Equal(t, options.NamingLowerCamel, cfg.FieldNaming)

	cfg, err = (&MappingFile{}).MergedConfig(base)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

func TestStringOrArray_First(t *testing.T) {
	assert.Equal(t, "", StringOrArray{}.First())
	assert.Equal(t, "a", StringOrArray{"a", "b"}.First())
}

func TestStringOrArray_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want StringOrArray
	}{
		{name: "scalar", in: "total", want: StringOrArray{"total"}},
		{name: "separated scalar", in: "total | amount", want: StringOrArray{"total", "amount"}},
		{name: "sequence", in: "[total, ' ', amount]", want: StringOrArray{"total", "amount"}},
		{name: "empty", in: `""`, want: StringOrArray{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringOrArray
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
