package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

func TestParse_RejectsTextWithoutProcessNumber(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Parse("Intimação genérica sem identificação de processo. ADV: FULANO DE TAL (OAB 12345/SP)")
	require.ErrorIs(t, err, pipeline.ErrNoProcessNumber)

	var perr *pipeline.ParseError
	require.ErrorAs(t, err, &perr)
	require.NotEmpty(t, perr.Snippet)
}

func TestParse_FullPublication(t *testing.T) {
	t.Parallel()

	text := `Processo 0012345-67.2016.8.26.0053 - Cumprimento de Sentença -
Requisição de Pequeno Valor - Maria da Silva Santos - Instituto Nacional do
Seguro Social - INSS - Vistos. Homologo os cálculos. Valor bruto: R$
48.735,74. Honorários advocatícios: R$ 2.435,24. Int.
ADV: MARCIO SILVA COELHO (OAB 45683/SP)`

	p := New()
	pub, err := p.Parse(text)
	require.NoError(t, err)

	require.Equal(t, "0012345-67.2016.8.26.0053", pub.ProcessNumber)
	require.Equal(t, DefaultDefendant, pub.Defendant)
	require.Equal(t, text, pub.RawContent)
	require.Len(t, pub.Lawyers, 1)
	require.Equal(t, "MARCIO SILVA COELHO", pub.Lawyers[0].Name)
	require.Equal(t, "45683", pub.Lawyers[0].OABNumber)
	require.Equal(t, "SP", pub.Lawyers[0].OABState)
	require.Equal(t, []pipeline.Amount{
		{Kind: pipeline.AmountGross, Cents: 4873574},
		{Kind: pipeline.AmountAttorneyFees, Cents: 243524},
	}, pub.Amounts)
}

func TestParse_PartialRecordIsNotAnError(t *testing.T) {
	t.Parallel()

	p := New()
	pub, err := p.Parse("Processo 7654321-98.2021.8.26.0500 - despacho de mero expediente.")
	require.NoError(t, err)
	require.Equal(t, "7654321-98.2021.8.26.0500", pub.ProcessNumber)
	require.Empty(t, pub.Authors)
	require.Empty(t, pub.Lawyers)
	require.Empty(t, pub.Amounts)
	require.Equal(t, DefaultDefendant, pub.Defendant)
}

func TestExtractLawyers_SeparatedList(t *testing.T) {
	t.Parallel()

	text := "ADV: MARCIO SILVA COELHO (OAB 45683/SP), ESMERALDA FIGUEIREDO DE OLIVEIRA (OAB 29062/SP)"
	lawyers := ExtractLawyers(text)

	require.Equal(t, []pipeline.Lawyer{
		{Name: "MARCIO SILVA COELHO", OABNumber: "45683", OABState: "SP"},
		{Name: "ESMERALDA FIGUEIREDO DE OLIVEIRA", OABNumber: "29062", OABState: "SP"},
	}, lawyers)
}

func TestExtractLawyers_Variants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		oab  string
	}{
		{"adv colon", "ADV: JOANA PRADO LIMA (OAB 11222/SP)", "11222"},
		{"adv period", "ADV. CARLOS EDUARDO NEVES (OAB 33444/RJ)", "33444"},
		{"advogado keyword", "Advogada: HELENA MOURA CASTRO (OAB 55666/MG)", "55666"},
		{"bare mention", "conforme peticionado por PEDRO ALCANTARA REIS (OAB 77888)", "77888"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			lawyers := ExtractLawyers(tc.text)
			require.Len(t, lawyers, 1)
			require.Equal(t, tc.oab, lawyers[0].OABNumber)
		})
	}
}

func TestExtractLawyers_RejectsInvalidNames(t *testing.T) {
	t.Parallel()

	// Single word and too-short captures come from boilerplate, never from
	// a real attorney block.
	require.Empty(t, ExtractLawyers("PROCURADORIA (OAB 1/SP)"))
	require.Empty(t, ExtractLawyers("AB CD (OAB 123/SP)"))
}

func TestDedupLawyers_SameOABDifferentCasing(t *testing.T) {
	t.Parallel()

	lawyers := DedupLawyers([]pipeline.Lawyer{
		{Name: NormalizeLawyerName("Marcio  Silva Coelho"), OABNumber: "45683"},
		{Name: NormalizeLawyerName("MARCIO SILVA COELHO"), OABNumber: "45683", OABState: "SP"},
	})

	require.Len(t, lawyers, 1)
	require.Equal(t, "MARCIO SILVA COELHO", lawyers[0].Name)
	require.Equal(t, "SP", lawyers[0].OABState, "later mention fills the missing state")
}

func TestDedupLawyers_FallsBackToNormalizedName(t *testing.T) {
	t.Parallel()

	lawyers := DedupLawyers([]pipeline.Lawyer{
		{Name: NormalizeLawyerName("Esmeralda  Figueiredo de Oliveira")},
		{Name: NormalizeLawyerName("ESMERALDA FIGUEIREDO DE OLIVEIRA")},
	})
	require.Len(t, lawyers, 1)
}

func TestExtractAuthors_MultipleAuthors(t *testing.T) {
	t.Parallel()

	text := `Processo 0012345-67.2016.8.26.0053 - Requisição de Pequeno Valor -
João Pereira Souza e Ana Costa Almeida - Instituto Nacional do Seguro Social - INSS - Vistos.`

	authors := extractAuthors(text, "0012345-67.2016.8.26.0053")
	require.Equal(t, []string{"João Pereira Souza", "Ana Costa Almeida"}, authors)
}

func TestExtractAuthors_NoMarkerLeavesRecordPartial(t *testing.T) {
	t.Parallel()

	text := "Processo 0012345-67.2016.8.26.0053 - Maria da Silva Santos - Vistos."
	require.Empty(t, extractAuthors(text, "0012345-67.2016.8.26.0053"))
}
