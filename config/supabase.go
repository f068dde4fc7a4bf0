package config

import (
	"fmt"

	supa "github.com/supabase-community/supabase-go"
)

var SupabaseClient *supa.Client

// InitSupabase initializes the shared Supabase client from the loaded config.
// The snapshot store issues its table queries through this client.
func InitSupabase(cfg *Config) error {
	client, err := supa.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	SupabaseClient = client
	Log.Info("Supabase client initialized")
	return nil
}
