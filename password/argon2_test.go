package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:           8192,
		Time:             1,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MinPasswordBytes: 10,
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	encoded, err := hasher.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := hasher.Verify("correct horse battery", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected match for correct password")
	}

	ok, err = hasher.Verify("wrong password!!", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch for wrong password")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	first, err := hasher.Hash("same input twice")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	second, err := hasher.Hash("same input twice")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"missing params", "$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=8192,t=1,p=1$not-base64!$aGFzaA"},
		{"short salt", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA"},
		{"memory below minimum", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"too few sections", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := hasher.Verify("anything", tc.encoded); err == nil {
				t.Fatalf("expected parse error for %q", tc.encoded)
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := testConfig()
	weakHasher, err := NewArgon2(weak)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	encoded, err := weakHasher.Hash("some password here")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	upgrade, err := weakHasher.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade: %v", err)
	}
	if upgrade {
		t.Fatal("hash at current parameters should not need upgrade")
	}

	strong := weak
	strong.Memory = 65536
	strong.Time = 3
	strongHasher, err := NewArgon2(strong)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	upgrade, err = strongHasher.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade: %v", err)
	}
	if !upgrade {
		t.Fatal("hash at weaker parameters should need upgrade")
	}

	verified, err := strongHasher.Verify("some password here", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !verified {
		t.Fatal("stronger config must still verify old hashes")
	}
}

func TestCheckPolicy(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	if err := hasher.CheckPolicy("short"); err == nil {
		t.Fatal("expected policy rejection for short password")
	}
	if err := hasher.CheckPolicy("long enough now"); err != nil {
		t.Fatalf("unexpected policy error: %v", err)
	}
}

func TestNewArgon2RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low memory", func(c *Config) { c.Memory = 1024 }},
		{"zero time", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
		{"weak policy", func(c *Config) { c.MinPasswordBytes = 4 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config validation error")
			}
		})
	}
}
