// Package gigachat implements the Sber GigaChat adapter. Completions are
// OpenAI-shaped and reuse the openai package's wire types; the adapter's
// own work is the OAuth credential flow: a client_id:client_secret pair
// is exchanged for a short-lived access token, cached until five minutes
// before expiry, and re-exchanged at most once when the API rejects it.
package gigachat
