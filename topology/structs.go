package topology

// Node is a repeater or an end-point of the quantum network
type Node struct {
	ID              string  `json:"id"`
	SwapProbability float64 `json:"p_swap"` // success probability of entanglement swapping when the node relays
}

// Edge is a physical link, stored once per unordered pair
type Edge struct {
	A               string  `json:"node_a"`
	B               string  `json:"node_b"`
	LinkProbability float64 `json:"p_link"` // elementary entanglement generation probability
}

// Neighbor is an adjacent node together with the probability of the connecting link
type Neighbor struct {
	ID              string
	LinkProbability float64
}
