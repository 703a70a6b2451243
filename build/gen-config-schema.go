// gen-config-schema writes the JSON schema of driversync.yaml, for editors
// that validate YAML against a schema.
package main

import (
	"log"
	"os"

	"github.com/AaroSnid/stm32-driver-sync/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s path/to/driversync.schema.json", os.Args[0])
	}
	bs, err := config.ReflectSchema()
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(os.Args[1], append(bs, '\n'), 0o644); err != nil {
		log.Fatal(err)
	}
}
