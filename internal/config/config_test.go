package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	c := Default()
	c.Port = 80
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for port below MinPort")
	}
}

func TestValidateRejectsEmptyDir(t *testing.T) {
	c := Default()
	c.Dir = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestValidateRejectsBadReplicaOf(t *testing.T) {
	c := Default()
	c.ReplicaOf = &ReplicaTarget{Host: "", Port: 6380}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty replicaof host")
	}
}

func TestParseReplicaOf(t *testing.T) {
	target, err := ParseReplicaOf("localhost 6380")
	if err != nil {
		t.Fatalf("ParseReplicaOf failed: %v", err)
	}
	if target.Host != "localhost" || target.Port != 6380 {
		t.Errorf("got %+v, want {localhost 6380}", target)
	}
}

func TestParseReplicaOfRejectsMalformed(t *testing.T) {
	cases := []string{"", "localhost", "localhost 6380 extra", "localhost notaport"}
	for _, c := range cases {
		if _, err := ParseReplicaOf(c); err == nil {
			t.Errorf("ParseReplicaOf(%q) should have failed", c)
		}
	}
}
