// Command check_openapi fails when api/openapi.yaml drifts from the routes
// the learnai server registers.
package main

import (
	"fmt"
	"os"
	"time"

	"learnai/internal/apidoc"
	"learnai/internal/app"
	"learnai/internal/server"
	"learnai/pkg/ai"
	"learnai/pkg/store"
)

// placeholderSecret satisfies the token store; no token is ever issued.
const placeholderSecret = "check-openapi-placeholder-secret-0000"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}

	doc, err := apidoc.Load(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	routes, err := servedRoutes()
	if err != nil {
		exitErr(err)
	}
	if err := apidoc.Check(doc, routes); err != nil {
		exitErr(err)
	}
	fmt.Printf("OpenAPI check passed (%d routes).\n", len(doc.Routes()))
}

func servedRoutes() ([]apidoc.Route, error) {
	tokens, err := store.NewJWTTokenStore(placeholderSecret, time.Hour, nil, store.JWTOptions{})
	if err != nil {
		return nil, err
	}
	// The ollama generator needs no credentials and is never called here.
	generator, err := ai.NewChatGenerator(ai.Config{Provider: ai.ProviderOllama})
	if err != nil {
		return nil, err
	}
	core, err := app.New(app.Config{Store: store.NewMemoryStore(), Tokens: tokens, Generator: generator})
	if err != nil {
		return nil, err
	}
	srv, err := server.New(server.Config{App: core})
	if err != nil {
		return nil, err
	}
	return srv.Routes()
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
