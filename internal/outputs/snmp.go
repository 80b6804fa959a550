package outputs

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// snmpTrapOID is the standard varbind naming the notification being sent
const snmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"

const defaultTrapPort = 162

// Trap types, appended to <enterprise>.0
const (
	trapCollectorFailure = 1
	trapSiteRecovered    = 2
)

// Varbinds carried by every trap, under <enterprise>.1
const (
	varSiteName  = ".1.1"
	varSiteURL   = ".1.2"
	varCollector = ".1.3"
	varErrorType = ".1.4"
	varMessage   = ".1.5"
)

// SNMPTrapOutput sends SNMPv2c traps when a collector fails for a site and
// when a previously failing site recovers
type SNMPTrapOutput struct {
	config       *config.SNMPConfig
	destinations []*gosnmp.GoSNMP

	mu      sync.Mutex
	failing map[string]bool
	sent    int
}

// NewSNMPTrapOutput creates a trap sender for the configured destinations
func NewSNMPTrapOutput(cfg *config.SNMPConfig) (*SNMPTrapOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	s := &SNMPTrapOutput{
		config:  cfg,
		failing: make(map[string]bool),
	}

	for _, raw := range cfg.TrapDestinations {
		host, port, err := parseTrapDestination(raw)
		if err != nil {
			s.Close()
			return nil, err
		}

		dest := &gosnmp.GoSNMP{
			Target:    host,
			Port:      port,
			Transport: "udp",
			Community: cfg.Community,
			Version:   gosnmp.Version2c,
			Timeout:   cfg.Timeout,
			Retries:   0,
		}
		if err := dest.Connect(); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to trap destination %s: %w", raw, err)
		}
		s.destinations = append(s.destinations, dest)
	}

	if len(s.destinations) == 0 {
		log.Printf("Warning: SNMP traps enabled but no trap destinations configured")
	} else {
		log.Printf("SNMP traps will be sent to %d destination(s) (enterprise OID %s)", len(s.destinations), cfg.EnterpriseOID)
	}

	return s, nil
}

// parseTrapDestination splits "host[:port]" and applies the default trap port
func parseTrapDestination(raw string) (string, uint16, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, fmt.Errorf("empty trap destination")
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		// No port given
		if strings.Contains(err.Error(), "missing port") {
			return strings.Trim(raw, "[]"), defaultTrapPort, nil
		}
		return "", 0, fmt.Errorf("invalid trap destination %q: %w", raw, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("invalid trap destination %q: empty host", raw)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return "", 0, fmt.Errorf("invalid trap destination port in %q", raw)
	}
	return host, uint16(port), nil
}

// Write sends the traps a result calls for
func (s *SNMPTrapOutput) Write(result *models.SiteResult) error {
	if s == nil {
		return nil
	}

	traps := s.trapsFor(result)
	if len(traps) == 0 || len(s.destinations) == 0 {
		return nil
	}

	var errs []error
	for _, trap := range traps {
		for _, dest := range s.destinations {
			if _, err := dest.SendTrap(trap); err != nil {
				errs = append(errs, fmt.Errorf("trap to %s:%d: %w", dest.Target, dest.Port, err))
				continue
			}
			s.mu.Lock()
			s.sent++
			s.mu.Unlock()
		}
	}
	return errors.Join(errs...)
}

// trapsFor builds the traps for a result and updates the per-site failure state
func (s *SNMPTrapOutput) trapsFor(result *models.SiteResult) []gosnmp.SnmpTrap {
	key := result.Site.Key
	if key == "" {
		key = result.Site.URL
	}

	s.mu.Lock()
	wasFailing := s.failing[key]
	s.failing[key] = !result.Success()
	s.mu.Unlock()

	var traps []gosnmp.SnmpTrap
	for _, e := range result.Errors {
		traps = append(traps, s.buildTrap(trapCollectorFailure, result, e.Collector, e.ErrorType, e.ErrorMessage))
	}
	if wasFailing && result.Success() {
		traps = append(traps, s.buildTrap(trapSiteRecovered, result, "", "", "all collectors succeeded"))
	}
	return traps
}

func (s *SNMPTrapOutput) buildTrap(trapType int, result *models.SiteResult, collector, errorType, message string) gosnmp.SnmpTrap {
	base := s.config.EnterpriseOID
	return gosnmp.SnmpTrap{
		Variables: []gosnmp.SnmpPDU{
			{Name: snmpTrapOID, Type: gosnmp.ObjectIdentifier, Value: fmt.Sprintf("%s.0.%d", base, trapType)},
			{Name: base + varSiteName, Type: gosnmp.OctetString, Value: result.Site.Name},
			{Name: base + varSiteURL, Type: gosnmp.OctetString, Value: result.Site.URL},
			{Name: base + varCollector, Type: gosnmp.OctetString, Value: collector},
			{Name: base + varErrorType, Type: gosnmp.OctetString, Value: errorType},
			{Name: base + varMessage, Type: gosnmp.OctetString, Value: message},
		},
	}
}

// Sent returns how many traps were delivered to a destination
func (s *SNMPTrapOutput) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Name returns the output module name
func (s *SNMPTrapOutput) Name() string {
	return "snmp"
}

// Close releases the trap sockets
func (s *SNMPTrapOutput) Close() error {
	if s == nil {
		return nil
	}
	for _, dest := range s.destinations {
		if dest.Conn != nil {
			dest.Conn.Close()
		}
	}
	return nil
}
