// Package wallet holds a learner's point balance.
package wallet

import "sync"

// DefaultBalance is the balance a new profile starts with.
const DefaultBalance = 100

// Wallet is a non-negative point balance. The zero value is an empty wallet.
type Wallet struct {
	mu      sync.Mutex
	balance int
}

// New returns a wallet holding balance, clamped at zero.
func New(balance int) *Wallet {
	return &Wallet{balance: max(0, balance)}
}

// Balance returns the current balance.
func (w *Wallet) Balance() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// Add increases the balance by n. Negative n counts as zero.
func (w *Wallet) Add(n int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance += max(0, n)
	return w.balance
}

// Spend decreases the balance by n, floored at zero. It never rejects the call;
// callers check sufficiency first.
func (w *Wallet) Spend(n int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = max(0, w.balance-max(0, n))
	return w.balance
}

// Set overwrites the balance, used when restoring from storage or rolling back.
func (w *Wallet) Set(balance int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = max(0, balance)
}
