// omnibot-mockapi serves an in-memory OmniBot backend for local console
// development: seeded data, token auth and a live conversation stream.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"omnibot-console/internal/mockapi"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mockapi.New().Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("mock backend listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
