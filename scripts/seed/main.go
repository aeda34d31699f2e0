package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type seedFile struct {
	Slots      []json.RawMessage `json:"slots"`
	Rooms      []json.RawMessage `json:"rooms"`
	Professors []json.RawMessage `json:"professors"`
	Sections   []json.RawMessage `json:"sections"`
	Rules      []json.RawMessage `json:"rules"`
}

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "API base URL")
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password")
	file := flag.String("file", "seed.json", "seed data file")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("email and password are required")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	token, err := login(client, *baseURL, *email, *password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	batches := []struct {
		path  string
		items []json.RawMessage
	}{
		{"/api/v1/slots", seed.Slots},
		{"/api/v1/rooms", seed.Rooms},
		{"/api/v1/professors", seed.Professors},
		{"/api/v1/sections", seed.Sections},
		{"/api/v1/rules", seed.Rules},
	}

	var created, failed int
	for _, batch := range batches {
		for _, item := range batch.items {
			if err := post(client, *baseURL+batch.path, token, item); err != nil {
				log.Printf("POST %s failed: %v", batch.path, err)
				failed++
				continue
			}
			created++
		}
	}
	fmt.Printf("seeded %d records (%d failed)\n", created, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func login(client *http.Client, baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(baseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	if lr.Data.Token == "" {
		return "", fmt.Errorf("no token in response")
	}
	return lr.Data.Token, nil
}

func post(client *http.Client, url, token string, payload json.RawMessage) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return nil
}
