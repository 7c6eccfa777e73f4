// seed_profiles.go is a standalone script that seeds dining profiles through the Consensus API.
//
// The seed file maps user IDs to lists of extracted preference batches, applied in order:
//
//	alice:
//	  - dietary: [{type: vegan, strictness: strict}]
//	    cuisines: [thai]
//	  - price: $$
//
// Usage:
//
//	go run scripts/seed_profiles.go -file profiles.yaml -api http://localhost:8700
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type restriction struct {
	Type       string `yaml:"type" json:"type"`
	Strictness string `yaml:"strictness,omitempty" json:"strictness,omitempty"`
}

type preferences struct {
	Dietary          []restriction `yaml:"dietary,omitempty" json:"dietary,omitempty"`
	Allergies        []string      `yaml:"allergies,omitempty" json:"allergies,omitempty"`
	Cuisines         []string      `yaml:"cuisines,omitempty" json:"cuisines,omitempty"`
	DislikedCuisines []string      `yaml:"disliked_cuisines,omitempty" json:"disliked_cuisines,omitempty"`
	Price            string        `yaml:"price,omitempty" json:"price,omitempty"`
	Locations        []string      `yaml:"locations,omitempty" json:"locations,omitempty"`
	Ambiance         []string      `yaml:"ambiance,omitempty" json:"ambiance,omitempty"`
}

func main() {
	seedPath := flag.String("file", "profiles.yaml", "path to the seed file")
	apiURL := flag.String("api", "http://localhost:8700", "Consensus API base URL")
	dryRun := flag.Bool("dry-run", false, "print batches without posting")
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}

	var seed map[string][]preferences
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}

	users := make([]string, 0, len(seed))
	batches := 0
	for user, list := range seed {
		users = append(users, user)
		batches += len(list)
	}
	sort.Strings(users)

	log.Printf("parsed %d batches for %d users from %s", batches, len(users), *seedPath)

	if *dryRun {
		for _, user := range users {
			for i, p := range seed[user] {
				body, _ := json.Marshal(p)
				fmt.Printf("[%s #%d] %s\n", user, i+1, body)
			}
		}
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	applied, skipped := 0, 0
	for _, user := range users {
		endpoint := fmt.Sprintf("%s/api/v1/profiles/%s/preferences", *apiURL, url.PathEscape(user))
		for i, p := range seed[user] {
			body, _ := json.Marshal(p)
			resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
			if err != nil {
				log.Printf("skip %s #%d: %v", user, i+1, err)
				skipped++
				continue
			}
			resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				applied++
			} else {
				log.Printf("skip %s #%d: status %d", user, i+1, resp.StatusCode)
				skipped++
			}
		}
	}

	log.Printf("done: %d applied, %d skipped", applied, skipped)
}
