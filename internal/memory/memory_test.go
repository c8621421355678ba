package memory

import "testing"

func TestValidFactType(t *testing.T) {
	for _, ft := range []string{
		FactInfrastructure, FactPainPoint, FactBusinessContext,
		FactPreference, FactPersonal, FactRelationship, FactLearningGoal,
	} {
		if !ValidFactType(ft) {
			t.Errorf("ValidFactType(%q) = false, want true", ft)
		}
	}
	for _, ft := range []string{"", "opinion", "Preference", "pain point"} {
		if ValidFactType(ft) {
			t.Errorf("ValidFactType(%q) = true, want false", ft)
		}
	}
}
