package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

const caseNumber = "0001234-56.2024.8.26.0053"

const casePage = `<html><body>
<table id="tablePartesPrincipais">
<tr><td>Reqte: JOSE CARLOS DA SILVA</td></tr>
<tr><td>Advogada: MARIA HELENA FONSECA (OAB 123456/SP)</td></tr>
<tr><td>Reqdo: Instituto Nacional do Seguro Social - INSS</td></tr>
</table>
<table id="tabelaTodasMovimentacoes">
<tr><td class="dataMovimentacao">15/03/2024</td>
<td>Homologado o cálculo. Valor bruto: R$ 12.345,67; valor líquido: R$ 11.000,00.
Disponibilização: 18/03/2024.</td></tr>
</table>
</body></html>`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL,
		Timeout:     5 * time.Second,
		LookupDelay: time.Millisecond,
	}, nil)
}

func TestLookup_ExtractsLawyersAmountsAndDates(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"numeroDigitoAnoUnificado": r.URL.Query().Get("numeroDigitoAnoUnificado"),
			"foroNumeroUnificado":      r.URL.Query().Get("foroNumeroUnificado"),
		}
		w.Write([]byte(casePage))
	}))

	rec, err := c.Lookup(context.Background(), caseNumber)
	require.NoError(t, err)

	require.Equal(t, "0001234-56.2024", gotQuery["numeroDigitoAnoUnificado"])
	require.Equal(t, "0053", gotQuery["foroNumeroUnificado"])

	require.Equal(t, caseNumber, rec.ProcessNumber)
	require.Len(t, rec.Lawyers, 1)
	require.Equal(t, "MARIA HELENA FONSECA", rec.Lawyers[0].Name)
	require.Equal(t, "123456", rec.Lawyers[0].OABNumber)

	require.Len(t, rec.Amounts, 2)
	for _, a := range rec.Amounts {
		require.Equal(t, pipeline.SourceSecondary, a.Source)
	}
	require.Equal(t, pipeline.AmountGross, rec.Amounts[0].Kind)
	require.Equal(t, int64(1234567), rec.Amounts[0].Cents)
	require.Equal(t, pipeline.AmountNet, rec.Amounts[1].Kind)
	require.Equal(t, int64(1100000), rec.Amounts[1].Cents)

	require.Equal(t, "2024-03-15", rec.PublicationDate)
	require.Equal(t, "2024-03-18", rec.AvailabilityDate)
}

func TestLookup_SealedCaseIsNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>Processo em segredo de justiça.</body></html>`))
	}))

	_, err := c.Lookup(context.Background(), caseNumber)
	require.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestLookup_EmptyPageIsNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><p>consulta</p></body></html>`))
	}))

	_, err := c.Lookup(context.Background(), caseNumber)
	require.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestLookup_ServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))

	_, err := c.Lookup(context.Background(), caseNumber)
	require.Error(t, err)
	require.True(t, pipeline.IsRetryable(err))
}

func TestLookup_RejectsMalformedProcessNumber(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("portal should not be hit")
	}))

	_, err := c.Lookup(context.Background(), "not-a-case-number")
	require.Error(t, err)
}

func TestLookup_PacesConsecutiveRequests(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(casePage))
	}))
	c.cfg.LookupDelay = 50 * time.Millisecond

	start := time.Now()
	_, err := c.Lookup(context.Background(), caseNumber)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), caseNumber)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
