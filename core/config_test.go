package main

import "testing"

func TestLoadConfig_Defaults(t *testing.T) {
	c := loadConfig(nil)
	want := defaultConfig()
	if c != want {
		t.Fatalf("loadConfig(nil) = %+v, want %+v", c, want)
	}
}

func TestLoadConfig_OverridesKnownKeys(t *testing.T) {
	c := loadConfig([]string{
		"CUBESNET_HOST=10.0.0.1",
		"CUBESNET_PORT=9000",
		"CUBESNET_MAX_NODES=8",
		"CUBESNET_CELL_SIZE=2.5",
		"IRRELEVANT=1",
	})
	if c.Host != "10.0.0.1" || c.Port != 9000 || c.MaxNodes != 8 || c.CellSize != 2.5 {
		t.Fatalf("loadConfig() = %+v", c)
	}
	// Unset keys keep their defaults.
	if c.SendRate != defaultConfig().SendRate {
		t.Fatalf("SendRate = %v, want default", c.SendRate)
	}
}

func TestLoadConfig_IgnoresMalformedValues(t *testing.T) {
	c := loadConfig([]string{"CUBESNET_PORT=not-a-number"})
	if c.Port != defaultConfig().Port {
		t.Fatalf("Port = %d, want default %d", c.Port, defaultConfig().Port)
	}
}

func TestLoadConfig_IgnoresMalformedPair(t *testing.T) {
	c := loadConfig([]string{"NOT_A_KV_PAIR"})
	if c != defaultConfig() {
		t.Fatalf("loadConfig() = %+v, want defaults", c)
	}
}
