package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
)

const noTablesContext = "No table information available."

const generationPrompt = `
You are an expert database assistant. Your task is to write a SQL query and a clear
explanation based on the table schemas provided and the user's question.

Rules:
1. Analyse the context and the question to produce the most precise SQL query possible.
2. Use table and column names exactly as they are defined in the schemas.
3. Write a short, clear explanation of how the query works.
4. Suggest one concrete optimization (indexes, filters, limits) for the query.
5. If the question cannot be answered with the schemas, sql_query must be "ERROR" and the
   explanation must say why.
6. Answer in the language of the question.

Context (table schemas):
%s

User question:
%s

Return ONLY a JSON object with the keys "sql_query", "explanation" and "optimization".
`

// rankTables orders tables by how many question words appear in their name,
// schema or description and keeps the best limit entries. Ties keep name order.
func rankTables(question string, tables []models.TableMetadata, limit int) []models.TableMetadata {
	words := tokenize(question)

	type scored struct {
		meta  models.TableMetadata
		score int
	}
	ranked := make([]scored, 0, len(tables))
	for _, t := range tables {
		vocab := make(map[string]struct{})
		for w := range tokenize(t.TableName + " " + t.SchemaInfo + " " + t.Description) {
			vocab[w] = struct{}{}
		}
		score := 0
		for w := range words {
			if _, ok := vocab[w]; ok {
				score++
			}
		}
		ranked = append(ranked, scored{meta: t, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].meta.TableName < ranked[j].meta.TableName
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.TableMetadata, len(ranked))
	for i, r := range ranked {
		out[i] = r.meta
	}
	return out
}

// tokenize lowercases s and splits it into words of two or more letters or digits.
// Underscored identifiers also contribute their parts.
func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, f := range fields {
		add := func(w string) {
			if len([]rune(w)) >= 2 {
				out[w] = struct{}{}
			}
		}
		add(f)
		if strings.Contains(f, "_") {
			for _, part := range strings.Split(f, "_") {
				add(part)
			}
		}
	}
	return out
}

func buildContext(tables []models.TableMetadata) string {
	if len(tables) == 0 {
		return noTablesContext
	}
	var b strings.Builder
	b.WriteString("AVAILABLE TABLES:\n\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "• Table: %s\nSchema: %s\nDescription: %s\n\n", t.TableName, t.SchemaInfo, t.Description)
	}
	return b.String()
}

func buildPrompt(question string, tables []models.TableMetadata) string {
	return fmt.Sprintf(generationPrompt, buildContext(tables), question)
}

// stripFences removes markdown code fences and a leading language tag from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			tag := strings.TrimSpace(s[:nl])
			if tag == "" || !strings.ContainsAny(tag, "{}") {
				s = s[nl+1:]
			}
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

type rawAnswer struct {
	SQLQuery     string `json:"sql_query"`
	SQL          string `json:"sql"`
	Explanation  string `json:"explanation"`
	Optimization string `json:"optimization"`
}

// decodeAnswer extracts the JSON object from model output and fills missing
// fields with defaults.
func decodeAnswer(output string) (*models.QueryResult, error) {
	s := stripFences(output)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("model response contains no JSON object")
	}

	var raw rawAnswer
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}

	res := &models.QueryResult{
		SQLQuery:     strings.TrimSpace(raw.SQLQuery),
		Explanation:  strings.TrimSpace(raw.Explanation),
		Optimization: strings.TrimSpace(raw.Optimization),
	}
	if res.SQLQuery == "" {
		res.SQLQuery = strings.TrimSpace(raw.SQL)
	}
	if res.SQLQuery == "" {
		res.SQLQuery = constants.DefaultSQLQuery
	}
	if res.Explanation == "" {
		res.Explanation = constants.DefaultExplanation
	}
	if res.Optimization == "" {
		res.Optimization = constants.DefaultOptimization
	}
	return res, nil
}
