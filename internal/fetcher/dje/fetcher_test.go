package dje

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, defaultBaseURL, f.cfg.BaseURL)
	require.Equal(t, defaultNavTimeout, f.cfg.NavigationTimeout)
	require.Equal(t, defaultPageDelay, f.cfg.PageDelay)
}

func TestExtractResultLinks(t *testing.T) {
	t.Parallel()

	html := `
		<table>
		<tr><td><a href="/cdje/consultaSimples.do?cdVolume=19&amp;nuDiario=100&amp;cdCaderno=12&amp;nuSeqpagina=3100">visualizar</a></td></tr>
		<tr><td><a href="/cdje/consultaSimples.do?cdVolume=19&amp;nuDiario=100&amp;cdCaderno=12&amp;nuSeqpagina=3100">repetido</a></td></tr>
		<tr><td><a href="/cdje/consultaSimples.do?cdVolume=19&amp;nuDiario=100&amp;cdCaderno=12&amp;nuSeqpagina=3205">visualizar</a></td></tr>
		<tr><td><a href="/outra/pagina.do">nada</a></td></tr>
		</table>`

	links := extractResultLinks(html, "https://dje.tjsp.jus.br")
	require.Len(t, links, 2)
	require.Equal(t, "https://dje.tjsp.jus.br/cdje/consultaSimples.do?cdVolume=19&nuDiario=100&cdCaderno=12&nuSeqpagina=3100", links[0].URL)
	require.Equal(t, "https://dje.tjsp.jus.br/cdje/consultaSimples.do?cdVolume=19&nuDiario=100&cdCaderno=12&nuSeqpagina=3205", links[1].URL)
}

func TestNoResultsPattern(t *testing.T) {
	t.Parallel()

	require.True(t, noResultsRe.MatchString("Não foi encontrado nenhum resultado para a busca."))
	require.True(t, noResultsRe.MatchString("NAO FOI ENCONTRADO NENHUM RESULTADO"))
	require.False(t, noResultsRe.MatchString("Foram encontrados 12 resultados."))
}

func TestTotalPagesPattern(t *testing.T) {
	t.Parallel()

	m := totalPagesRe.FindStringSubmatch("Página 1 de 37")
	require.NotNil(t, m)
	require.Equal(t, "37", m[1])

	require.Nil(t, totalPagesRe.FindStringSubmatch("sem paginador"))
}

func TestWithPageParam(t *testing.T) {
	t.Parallel()

	got := withPageParam("https://dje.tjsp.jus.br/cdje/consultaSimples.do?cdVolume=19&nuSeqpagina=3100", 5)
	require.Contains(t, got, "nuSeqpagina=5")
	require.Contains(t, got, "cdVolume=19")
}

func TestClassify(t *testing.T) {
	t.Parallel()

	f := &Fetcher{cfg: Config{BaseURL: defaultBaseURL}}

	err := f.classify("search", "u", context.DeadlineExceeded)
	require.True(t, pipeline.IsRetryable(err))

	err = f.classify("search", "u", errors.New("node not found"))
	require.False(t, pipeline.IsRetryable(err))

	var fe *pipeline.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "search", fe.Op)
}

func TestSearchRejectsBadDate(t *testing.T) {
	t.Parallel()

	f, err := New(Config{PageDelay: time.Millisecond})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Search(context.Background(), "13/01/2026", nil)
	require.Error(t, err)
	require.False(t, pipeline.IsRetryable(err))
}
