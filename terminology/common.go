package terminology

import "sort"

// CommonProcedures returns a handful of frequently billed TUSS procedure
// codes (table 22). It is used to seed stores for self-tests and demos and
// is not a substitute for the full table.
func CommonProcedures() []Entry {
	return []Entry{
		{Code: "10101012", Description: "Consulta em consultório (no horário normal ou preestabelecido)"},
		{Code: "10101039", Description: "Consulta em pronto socorro"},
		{Code: "20101074", Description: "Avaliação clínica e eletrocardiográfica"},
		{Code: "40301010", Description: "Ácido fólico, pesquisa e/ou dosagem nos eritrócitos"},
		{Code: "40302040", Description: "Bilirrubinas (direta, indireta e total)"},
		{Code: "40304361", Description: "Hemograma com contagem de plaquetas ou frações"},
		{Code: "40801020", Description: "RX - Crânio - 2 incidências"},
		{Code: "40901114", Description: "US - Abdome total"},
	}
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
}
