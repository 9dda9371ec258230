package botclassifier

import (
	"net"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// asnRecord mirrors the subset of an ASN mmdb's schema this oracle
// reads; other fields are left unparsed.
type asnRecord struct {
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// MaxmindReputation is a ReputationSource backed by a local ASN .mmdb
// file. Known hosting/datacenter ASNs (the kind residential browsers
// never originate from) count as suspicious; anything else, including
// a lookup miss, is not.
type MaxmindReputation struct {
	mu sync.RWMutex
	db *maxminddb.Reader

	lookupTimeout time.Duration
	datacenterOrg map[string]bool
}

// NewMaxmindReputation opens dbPath lazily: a missing or unreadable
// file leaves the oracle permanently fall-open rather than failing
// startup.
func NewMaxmindReputation(dbPath string, datacenterOrgs []string) *MaxmindReputation {
	r := &MaxmindReputation{
		lookupTimeout: 50 * time.Millisecond,
		datacenterOrg: make(map[string]bool, len(datacenterOrgs)),
	}
	for _, org := range datacenterOrgs {
		r.datacenterOrg[org] = true
	}

	if dbPath == "" {
		return r
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		return r
	}
	r.db = db
	return r
}

// IsSuspicious reports whether ip's ASN organization is a known
// datacenter/hosting provider. Any error - bad IP, closed DB, missing
// record - resolves to false (fall open), per Classify's contract that
// classifier errors are never fatal.
func (r *MaxmindReputation) IsSuspicious(ipStr string) bool {
	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()

	if db == nil {
		return false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	done := make(chan bool, 1)
	go func() {
		var rec asnRecord
		if err := db.Lookup(ip, &rec); err != nil {
			done <- false
			return
		}
		done <- r.datacenterOrg[rec.AutonomousSystemOrganization]
	}()

	select {
	case suspicious := <-done:
		return suspicious
	case <-time.After(r.lookupTimeout):
		return false
	}
}

// Close releases the underlying database reader, if one was opened.
func (r *MaxmindReputation) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

var _ ReputationSource = (*MaxmindReputation)(nil)
