package mwdb_test

import (
	"encoding/json"
	"mwdb/pkg/mwdb"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))

	return m
}

func TestConfigDhash(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{
			name: "emotet spam",
			cfg: `{
				"type": "emotet_spam",
				"urls": [
					{"cnc": "23.253.207.142", "port": 8080},
					{"cnc": "185.187.198.4", "port": 8080},
					{"cnc": "46.228.205.245", "port": 4143}
				],
				"hdr_const": 355370982
			}`,
			want: "f16fbc9c2a977daed84a5cc5e36c5bbf4bf0da044d3bf1cb367bdb05ff915c70",
		},
		{
			name: "scalars",
			cfg:  `{"a": true, "b": null, "c": [], "d": 1.5}`,
			want: "2092c0416a7297e59168a0c843f0290fcc04b5c2cf5aae4ceb28122cba506c4d",
		},
		{
			name: "nested",
			cfg:  `{"nested": {"a": [1, 2, {"b": "c"}], "x": null}, "f": 0.25, "s": "str"}`,
			want: "bef98f7f410e6dae666be7a0cf1995cff5a15ba5eaf9ee7e4b110d07e93a63e4",
		},
		{
			name: "empty",
			cfg:  `{}`,
			want: "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, mwdb.ConfigDhash(decode(t, tt.cfg)))
		})
	}
}

func TestConfigDhash_inBlob(t *testing.T) {
	const want = "99d16cd26021ff5bec93b4756437e9c65bd0056c882cb130eee42bf9d9658294"

	embedded := decode(t, `{"family": "x", "dump": {"in-blob": {"content": "hello", "blob_name": "a", "blob_type": "b"}}}`)
	referenced := decode(t,
		`{"family": "x", "dump": {"in-blob": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"}}`)

	require.Equal(t, want, mwdb.ConfigDhash(embedded))
	require.Equal(t, want, mwdb.ConfigDhash(referenced))

	inner, ok := embedded["dump"].(map[string]any)["in-blob"].(map[string]any)
	require.True(t, ok, "input must not be modified")
	require.Equal(t, "hello", inner["content"])
}

func TestConfigDhash_nativeNumbers(t *testing.T) {
	fromJSON := decode(t, `{"port": 8080, "ratio": 0.5}`)
	native := map[string]any{"port": 8080, "ratio": 0.5}

	require.Equal(t, mwdb.ConfigDhash(fromJSON), mwdb.ConfigDhash(native))
}

func TestConfigDhashJSON_keepsFloats(t *testing.T) {
	got, err := mwdb.ConfigDhashJSON([]byte(`{"d": 1.0}`))
	require.NoError(t, err)
	require.Equal(t, "44ab3d661ac964f6b5f51d75bf1c7b5c77e670700ff008b7639be51dc0fbb808", got)

	asInt, err := mwdb.ConfigDhashJSON([]byte(`{"d": 1}`))
	require.NoError(t, err)
	require.NotEqual(t, got, asInt)
	require.Equal(t, mwdb.ConfigDhash(decode(t, `{"d": 1}`)), asInt)

	exp, err := mwdb.ConfigDhashJSON([]byte(`{"d": 1e0}`))
	require.NoError(t, err)
	require.Equal(t, got, exp)
}

func TestConfigDhashJSON_matchesDecodedFractions(t *testing.T) {
	const cfg = `{"nested": {"a": [1, 2, {"b": "c"}], "x": null}, "f": 0.25, "s": "str"}`

	got, err := mwdb.ConfigDhashJSON([]byte(cfg))
	require.NoError(t, err)
	require.Equal(t, "bef98f7f410e6dae666be7a0cf1995cff5a15ba5eaf9ee7e4b110d07e93a63e4", got)
}

func TestDecodeConfig_invalid(t *testing.T) {
	for _, v := range []string{"", "[1]", "null", "{"} {
		_, err := mwdb.DecodeConfig([]byte(v))
		require.Error(t, err, v)
	}
}
