// Package server implements the HTTP surface: the streaming chat endpoint
// that drives sessionfacade.Facade.StartTurn, and CRUD endpoints over
// conversations, skills, MCP server configs, and the LLM model catalog.
package server
