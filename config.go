package kaiseki

import "log/slog"

// Config describes the resources and plugins a Dictionary is built from.
type Config struct {
	// SystemDict is the directory holding matrix.def and lex.csv.
	SystemDict string
	// CharDef is the character definition file.
	CharDef string
	// UserDicts are user lexicon CSV files, merged in order.
	UserDicts []string

	InputTextPlugins   []PluginDescriptor
	OovProviderPlugins []PluginDescriptor
	PathRewritePlugins []PluginDescriptor

	// Logger receives construction messages. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOovPOS is the POS given to words of the fallback OOV provider
// installed when no OOV provider is configured.
var DefaultOovPOS = []string{"補助記号", "一般", "*", "*", "*", "*"}

// defaultOovProvider is used when Config lists no OOV provider: one
// character per unknown word, at a high cost.
func defaultOovProvider() PluginDescriptor {
	pos := make([]any, len(DefaultOovPOS))
	for i, s := range DefaultOovPOS {
		pos[i] = s
	}
	return PluginDescriptor{
		ClassKey:  "SimpleOovProviderPlugin",
		"oovPOS":  pos,
		"leftId":  0,
		"rightId": 0,
		"cost":    30000,
		"userPOS": "allow",
	}
}
