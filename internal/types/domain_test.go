package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestRiskLabelJSON(t *testing.T) {
	type wrapper struct {
		Risk RiskLabel `json:"risk"`
	}

	b, err := json.Marshal(wrapper{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"risk":null}` {
		t.Errorf("undefined label encoded as %s", b)
	}

	b, _ = json.Marshal(wrapper{Risk: RiskWarning})
	if string(b) != `{"risk":"warning"}` {
		t.Errorf("warning label encoded as %s", b)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"risk":null}`), &w); err != nil || w.Risk != RiskUndefined {
		t.Errorf("Unmarshal(null) = %q, %v", w.Risk, err)
	}
	if err := json.Unmarshal([]byte(`{"risk":"danger"}`), &w); err != nil || w.Risk != RiskDanger {
		t.Errorf("Unmarshal(danger) = %q, %v", w.Risk, err)
	}
}

func TestRiskLabelRank(t *testing.T) {
	if !(RiskUndefined.Rank() < RiskSafe.Rank() && RiskSafe.Rank() < RiskWarning.Rank() && RiskWarning.Rank() < RiskDanger.Rank()) {
		t.Errorf("rank ordering broken")
	}
}

func TestParameterDefaults(t *testing.T) {
	tests := map[Parameter]float64{
		ParamWaterLevel:  1.0,
		ParamRainfall:    0,
		ParamTemperature: 25,
		ParamHumidity:    70,
		ParamWindSpeed:   5,
		ParamPressure:    1013,
		Parameter("ph"):  0,
	}
	for p, want := range tests {
		if got := p.DefaultValue(); got != want {
			t.Errorf("%s.DefaultValue() = %v, want %v", p, got, want)
		}
	}
}

func TestForecastMethodTags(t *testing.T) {
	proxy := ProxyMethod("SN-77")
	if proxy != "proxy_model_SN-77" {
		t.Errorf("ProxyMethod() = %q", proxy)
	}
	if !proxy.IsProxy() || !proxy.IsFallback() {
		t.Errorf("proxy method should be a fallback")
	}
	if MethodModel.IsFallback() {
		t.Errorf("model method should not be a fallback")
	}
	if !MethodPersistenceFallback.IsFallback() || !MethodStatisticalFallback.IsFallback() {
		t.Errorf("fallback tiers not recognised")
	}
}

func TestSensorHelpers(t *testing.T) {
	empty := ""
	code := "DHOMPO_GRU"
	lat, lon := -7.0, 110.4

	if (&Sensor{}).HasModel() || (&Sensor{ModelCode: &empty}).HasModel() {
		t.Errorf("HasModel() should be false without a code")
	}
	if !(&Sensor{ModelCode: &code}).HasModel() {
		t.Errorf("HasModel() should be true")
	}
	if (&Sensor{Latitude: &lat}).HasLocation() || !(&Sensor{Latitude: &lat, Longitude: &lon}).HasLocation() {
		t.Errorf("HasLocation() mismatch")
	}
}

func TestSecretStringRedacts(t *testing.T) {
	s := SecretString("postgres://user:pw@host/db")

	if out := fmt.Sprintf("%s %v", s, s); strings.Contains(out, "pw@host") {
		t.Errorf("fmt leaked secret: %s", out)
	}
	b, _ := json.Marshal(struct{ DSN SecretString }{s})
	if strings.Contains(string(b), "pw@host") {
		t.Errorf("json leaked secret: %s", b)
	}
	if s.Unmask() != "postgres://user:pw@host/db" {
		t.Errorf("Unmask() returned %q", s.Unmask())
	}
}
