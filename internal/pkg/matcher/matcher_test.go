package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Análisis de Mercado ", "analisis de mercado"},
		{"INNOVACIÓN & I+D", "innovacion  id"},
		{"Niño", "nino"},
		{"3. Presupuesto (€)", "3 presupuesto"},
		{"¿¡!?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "Resumen Ejecutivo", "Resumen Ejecutivo", true},
		{"case and accents", "Innovación Tecnológica", "INNOVACION TECNOLOGICA", true},
		{"substring", "Presupuesto", "PRESUPUESTO Y VIABILIDAD", true},
		{"unrelated", "Resumen Ejecutivo", "Plan de Marketing", false},
		{"short substring ignored", "plan", "plan de marketing", false},
		{"token overlap above half", "Equipo humano del proyecto", "Equipo del proyecto", true},
		{"token overlap exactly half", "analisis mercado", "analisis riesgos", false},
		{"empty", "", "Presupuesto", false},
		{"punctuation only", "???", "!!!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.a, tt.b))
		})
	}
}

func TestMatchesReflexive(t *testing.T) {
	for _, s := range []string{"a", "Objetivos", "Plan de trabajo y cronograma", "Impacto socio-económico", "I+D"} {
		assert.True(t, Matches(s, s), s)
	}
}

func TestMatchesSymmetric(t *testing.T) {
	titles := []string{
		"Resumen Ejecutivo",
		"Presupuesto",
		"PRESUPUESTO Y VIABILIDAD",
		"Plan de Marketing",
		"Plan de trabajo",
		"Equipo humano del proyecto",
		"Equipo del proyecto",
		"Innovación",
		"Grado de innovación tecnológica",
		"",
	}
	for _, a := range titles {
		for _, b := range titles {
			assert.Equal(t, Matches(a, b), Matches(b, a), "%q vs %q", a, b)
		}
	}
}

func TestResolvers(t *testing.T) {
	var r Resolver = FuzzyResolver{}
	assert.True(t, r.MatchesSection("presupuesto", "Presupuesto y viabilidad"))

	r = ExactResolver{}
	assert.True(t, r.MatchesSection(" Presupuesto ", "Presupuesto"))
	assert.False(t, r.MatchesSection("presupuesto", "Presupuesto"))
	assert.False(t, r.MatchesSection("", ""))
}

func TestLookup(t *testing.T) {
	scores := map[string]int{
		"Presupuesto detallado": 70,
		"Objetivos":             40,
	}

	v, ok := Lookup[int](FuzzyResolver{}, "Objetivos", scores)
	assert.True(t, ok)
	assert.Equal(t, 40, v)

	v, ok = Lookup[int](FuzzyResolver{}, "Presupuesto", scores)
	assert.True(t, ok)
	assert.Equal(t, 70, v)

	_, ok = Lookup[int](FuzzyResolver{}, "Cronograma", scores)
	assert.False(t, ok)

	_, ok = Lookup[int](ExactResolver{}, "Presupuesto", scores)
	assert.False(t, ok)
}
