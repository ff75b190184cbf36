package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

func TestSplit_JoinsContinuationAcrossPages(t *testing.T) {
	t.Parallel()

	pageA := `Processo 1111111-11.2020.8.26.0500 - Requisição de Pequeno Valor -
Maria Souza - Instituto Nacional do Seguro Social - INSS - Vistos. Homologo
os cálculos apresentados pela contadoria, fixando o`
	pageB := `valor bruto: R$ 1.234,56. Int. ADV: MARCIO SILVA COELHO (OAB 45683/SP)
Processo 2222222-22.2020.8.26.0500 - Outro Autor - Instituto Nacional do
Seguro Social - INSS - despacho. ADV: ANA PAULA BORGES (OAB 10101/SP)`

	spans := NewMerger().Split([]string{pageA, pageB})

	require.Len(t, spans, 2)

	require.True(t, spans[0].Merged)
	require.Equal(t, pipeline.PageRange{First: 1, Last: 2}, spans[0].Pages)
	require.Contains(t, spans[0].Text, "1111111-11.2020.8.26.0500")
	require.Contains(t, spans[0].Text, "valor bruto: R$ 1.234,56")

	require.False(t, spans[1].Merged)
	require.Equal(t, pipeline.PageRange{First: 2, Last: 2}, spans[1].Pages)
	require.Contains(t, spans[1].Text, "2222222-22.2020.8.26.0500")
	require.NotContains(t, spans[1].Text, "valor bruto", "joined head must not be parsed twice")
}

func TestSplit_DoesNotJoinWhenTailIsTerminated(t *testing.T) {
	t.Parallel()

	pageA := `Processo 1111111-11.2020.8.26.0500 - Maria Souza - Instituto Nacional
do Seguro Social - INSS - Vistos. ADV: MARCIO SILVA COELHO (OAB 45683/SP)`
	pageB := `continuação aparente de texto sem marcador de processo`

	spans := NewMerger().Split([]string{pageA, pageB})

	require.Len(t, spans, 2)
	require.False(t, spans[0].Merged)
	require.False(t, spans[1].Merged)
}

func TestSplit_AmbiguousHeadPrefersNotMerging(t *testing.T) {
	t.Parallel()

	pageA := `Processo 1111111-11.2020.8.26.0500 - Maria Souza - texto interrompido no`
	pageB := `Processo 3333333-33.2020.8.26.0500 - novo registro - Instituto Nacional do
Seguro Social - INSS - despacho.`

	spans := NewMerger().Split([]string{pageA, pageB})

	require.Len(t, spans, 2)
	for _, s := range spans {
		require.False(t, s.Merged, "a head that opens a new publication must never be joined")
	}
}

func TestSplit_UppercaseContinuationIsAmbiguous(t *testing.T) {
	t.Parallel()

	pageA := `Processo 1111111-11.2020.8.26.0500 - Maria Souza - texto interrompido no`
	pageB := `Edital de citação sem número de processo nesta página`

	spans := NewMerger().Split([]string{pageA, pageB})

	require.Len(t, spans, 2)
	require.False(t, spans[0].Merged)
}

func TestSplit_MultiplePublicationsPerPage(t *testing.T) {
	t.Parallel()

	page := `Processo 1111111-11.2020.8.26.0500 - A - Instituto Nacional do Seguro
Social - INSS - despacho um. ADV: JOANA PRADO LIMA (OAB 11222/SP)
Processo 2222222-22.2020.8.26.0500 - B - Instituto Nacional do Seguro
Social - INSS - despacho dois. ADV: CARLOS EDUARDO NEVES (OAB 33444/RJ)`

	spans := NewMerger().Split([]string{page})

	require.Len(t, spans, 2)
	require.Contains(t, spans[0].Text, "1111111-11.2020.8.26.0500")
	require.Contains(t, spans[1].Text, "2222222-22.2020.8.26.0500")
	require.NotContains(t, spans[0].Text, "2222222-22.2020.8.26.0500")
}
