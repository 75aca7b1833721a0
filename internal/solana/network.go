package solana

import "strings"

// Public cluster endpoints.
const (
	DevnetEndpoint  = "https://api.devnet.solana.com"
	TestnetEndpoint = "https://api.testnet.solana.com"
	MainnetEndpoint = "https://api.mainnet-beta.solana.com"
)

// EndpointFor resolves a cluster name (devnet, testnet, mainnet, mainnet-beta)
// to its public RPC endpoint. Anything else is treated as a custom endpoint
// URL and returned unchanged.
func EndpointFor(network string) string {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "devnet":
		return DevnetEndpoint
	case "testnet":
		return TestnetEndpoint
	case "mainnet", "mainnet-beta":
		return MainnetEndpoint
	default:
		return network
	}
}
