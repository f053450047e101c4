package main

import (
	"log"
	"net/http"

	"paperchat/internal/api"
	"paperchat/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	h := api.NewServer(cfg)
	log.Printf("paperchat api listening on %s llm_providers=%q embed_providers=%q", cfg.APIAddr, cfg.LLMProviders, cfg.EmbedProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
