package opcua

import (
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
)

func validConfig() Config {
	return Config{
		Endpoint: "opc.tcp://localhost:4840",
		Nodes: NodeSet{
			Seq:             "ns=2;s=rovio.seq",
			FeatureCovAreas: "ns=2;s=rovio.feature_cov_areas",
			Velocity:        "ns=2;s=rovio.velocity",
			Position:        "ns=2;s=rovio.position",
			Orientation:     "ns=2;s=rovio.orientation",
		},
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.SecurityMode != "None" || cfg.SecurityPolicy != "None" {
		t.Fatalf("expected default security mode/policy None, got %s/%s", cfg.SecurityMode, cfg.SecurityPolicy)
	}
	if cfg.PublishInterval != 50*time.Millisecond {
		t.Fatalf("expected default publish interval 50ms, got %s", cfg.PublishInterval)
	}
	if cfg.SourceNodeID != "rovio" {
		t.Fatalf("expected default source node id rovio, got %s", cfg.SourceNodeID)
	}
}

func TestConfigValidateRequiresNodes(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missing := validConfig()
	missing.Nodes.Velocity = ""
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for missing velocity node")
	}

	noEndpoint := validConfig()
	noEndpoint.Endpoint = ""
	if err := noEndpoint.Validate(); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}

func TestVariantToVec3(t *testing.T) {
	v, err := ua.NewVariant([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	vec, ok := variantToVec3(v)
	if !ok || vec.X != 1 || vec.Y != 2 || vec.Z != 3 {
		t.Fatalf("unexpected vec: %+v ok=%v", vec, ok)
	}

	short, err := ua.NewVariant([]float64{1, 2})
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	if _, ok := variantToVec3(short); ok {
		t.Fatalf("expected 2-element array to be rejected")
	}
}

func TestVariantToQuat(t *testing.T) {
	v, err := ua.NewVariant([]float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	q, ok := variantToQuat(v)
	if !ok || q.Real != 1 || q.Imag != 0 || q.Jmag != 0 || q.Kmag != 0 {
		t.Fatalf("unexpected quat: %+v ok=%v", q, ok)
	}
}

func TestVariantToUint64RejectsNegative(t *testing.T) {
	v, err := ua.NewVariant(int32(-1))
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	if _, ok := variantToUint64(v); ok {
		t.Fatalf("expected negative seq to be rejected")
	}
}
