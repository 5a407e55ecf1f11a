// Package config loads fiirank configuration.
//
// # Configuration Sources
//
// Sources are applied in order, later ones overriding earlier ones:
//
//	1. Default values
//	2. A YAML file (FIIRANK_CONFIG, ./config.yaml or ./configs/config.yaml)
//	3. A .env file in the working directory
//	4. Environment variables
//
// # Environment Variables
//
// Variables follow the FIIRANK_<SECTION>_<FIELD> pattern:
//
//	FIIRANK_SERVER_PORT=8080
//	FIIRANK_LOGGING_LEVEL=debug
//	FIIRANK_SOURCES_HEADLESS=false
//	FIIRANK_SCREENING_SECTORS=Papéis,Misto
//	FIIRANK_EXPORT_SHEETS_ENABLED=true
//	FIIRANK_STORAGE_PATH=/var/lib/fiirank/fiirank.db
//
// Quantile rules can only be set from the YAML file:
//
//	screening:
//	  quantiles:
//	    - column: patrimonio_liquido
//	      percentile: 0.25
//	      mode: larger
//
// Empty sector and quantile lists fall back to the built-in screening policy.
//
// # Validation
//
// Load validates the merged result with struct tags and refuses to return
// an invalid configuration.
package config
