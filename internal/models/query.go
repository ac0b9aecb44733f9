package models

// QueryResult is the payload of a successful /ask call.
type QueryResult struct {
	SQLQuery     string `json:"sql_query"`
	Explanation  string `json:"explanation"`
	Optimization string `json:"optimization"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// MaxQuestionLength is the longest accepted question, in characters after trimming.
const MaxQuestionLength = 500
