package auth

// Version is reported by /ok, the OpenAPI document and the CLI.
const Version = "0.1.0"
