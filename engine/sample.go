package engine

import (
	"fmt"
	"strings"
	"time"
)

// SampleDocument returns a small, valid TISS 4.01.00 batch with two
// SP/SADT guides dated on the day of now. It is used by the self-test and
// by examples.
func SampleDocument(now time.Time) string {
	return SampleBatch(now, 2)
}

// SampleBatch returns a valid batch with n guides.
func SampleBatch(now time.Time, n int) string {
	day := now.Format(time.DateOnly)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas">
  <ans:cabecalho>
    <ans:identificacaoTransacao><ans:tipoTransacao>ENVIO_LOTE_GUIAS</ans:tipoTransacao></ans:identificacaoTransacao>
    <ans:origem><ans:codigoPrestadorNaOperadora>123456</ans:codigoPrestadorNaOperadora></ans:origem>
    <ans:destino><ans:registroANS>000001</ans:registroANS></ans:destino>
    <ans:padrao>4.01.00</ans:padrao>
  </ans:cabecalho>
  <ans:prestadorParaOperadora>
    <ans:loteGuias>
      <ans:numeroLote>1</ans:numeroLote>
      <ans:guiasTISS>
`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `        <ans:guiaSP-SADT>
          <ans:cabecalhoGuia><ans:numeroGuiaPrestador>%06d</ans:numeroGuiaPrestador></ans:cabecalhoGuia>
          <ans:dadosAtendimento><ans:tipoAtendimento>04</ans:tipoAtendimento></ans:dadosAtendimento>
          <ans:procedimentosExecutados>
            <ans:procedimentoExecutado>
              <ans:dataExecucao>%s</ans:dataExecucao>
              <ans:procedimento><ans:codigoTabela>22</ans:codigoTabela><ans:codigoProcedimento>10101012</ans:codigoProcedimento></ans:procedimento>
              <ans:valorTotal>150.00</ans:valorTotal>
            </ans:procedimentoExecutado>
          </ans:procedimentosExecutados>
        </ans:guiaSP-SADT>
`, i, day)
	}
	b.WriteString(`      </ans:guiasTISS>
    </ans:loteGuias>
  </ans:prestadorParaOperadora>
</ans:mensagemTISS>
`)
	return b.String()
}
