package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/services/crafting"
)

// Validates a recipe catalog and prints its digest. With -service, also checks
// that a running kozakd serves the same catalog.
func main() {
	catalogURI := flag.String("catalog", "", "Catalog URI (file:///path, https://... or a local path)")
	expected := flag.String("expected-digest", "", "Expected catalog digest (hex)")
	service := flag.String("service", "", "kozakd base URL whose /healthz digest must match")
	flag.Parse()

	if *catalogURI == "" {
		flag.Usage()
		os.Exit(1)
	}

	data, err := fetch(*catalogURI)
	if err != nil {
		log.Fatalf("fetch catalog: %v", err)
	}
	catalog, err := crafting.ParseCatalog(data)
	if err != nil {
		log.Fatalf("invalid catalog: %v", err)
	}
	digest := catalog.Digest()

	if *expected != "" && !strings.EqualFold(digest, trim0x(*expected)) {
		log.Fatalf("catalog digest mismatch: got %s want %s", digest, trim0x(*expected))
	}

	if *service != "" {
		body, err := fetch(strings.TrimRight(*service, "/") + "/healthz")
		if err != nil {
			log.Fatalf("fetch service health: %v", err)
		}
		var health struct {
			Catalog string `json:"catalog"`
		}
		if err := json.Unmarshal(body, &health); err != nil {
			log.Fatalf("decode service health: %v", err)
		}
		if !strings.EqualFold(health.Catalog, digest) {
			log.Fatalf("service serves catalog %s, file is %s", health.Catalog, digest)
		}
	}

	fmt.Printf("Catalog OK. Recipes=%d Digest=%s\n", catalog.Len(), digest)
}

func fetch(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "file://") {
		return os.ReadFile(strings.TrimPrefix(uri, "file://"))
	}
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return os.ReadFile(uri)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(uri)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func trim0x(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "0x") {
		return s[2:]
	}
	return s
}
