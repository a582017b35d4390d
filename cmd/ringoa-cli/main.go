// Command ringoa-cli is a thin smoke-testing front end for the RingOA
// protocol stack, mirroring cmd/threshold-cli/main.go's cobra
// command-tree style. Per spec.md's Non-goals, it is not a supported
// product surface: no network dialing, no persistent key management —
// just an `info` command describing the negotiated parameters and a
// `simulate` command that runs one FM-index query against an in-memory
// three-party harness for manual inspection.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maczac150/RingOA-dev-sub002/internal/testutil"
	"github.com/maczac150/RingOA-dev-sub002/pkg/cmp"
	"github.com/maczac150/RingOA-dev-sub002/pkg/config"
	"github.com/maczac150/RingOA-dev-sub002/pkg/dpf"
	"github.com/maczac150/RingOA-dev-sub002/pkg/fmi"
	"github.com/maczac150/RingOA-dev-sub002/pkg/netio"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/ass"
	"github.com/maczac150/RingOA-dev-sub002/pkg/sharing/rss"
)

var (
	databaseBitsize uint
	sigma           uint
	queryStr        string

	rootCmd = &cobra.Command{
		Use:   "ringoa-cli",
		Short: "Smoke-test front end for the RingOA three-party FM-index protocol",
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print the negotiated protocol parameters",
		RunE:  runInfo,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run one FM-index longest-prefix-match query against an in-memory three-party harness",
		RunE:  runSimulate,
	}
)

func init() {
	rootCmd.PersistentFlags().UintVar(&databaseBitsize, "database-bitsize", 3, "log2 of the indexed text length")
	rootCmd.PersistentFlags().UintVar(&sigma, "sigma", 2, "log2 of the alphabet size")
	simulateCmd.Flags().StringVar(&queryStr, "query", "0,3,1", "comma-separated query character codes")

	rootCmd.AddCommand(infoCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ringoa-cli: %v\n", err)
		os.Exit(1)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	sess := config.Session{
		ID:              party.P0,
		Host:            "127.0.0.1",
		BasePort:        9000,
		DialTimeout:     0, // not used outside a real dial
		SessionNonce:    []byte("ringoa-cli"),
		DatabaseBitsize: databaseBitsize,
		Sigma:           sigma,
	}
	qp, err := sess.QuantileParams()
	if err != nil {
		return err
	}
	fmt.Printf("RingOA CLI\n")
	fmt.Printf("  database bitsize: %d (database size %d)\n", databaseBitsize, qp.DatabaseSize())
	fmt.Printf("  sigma:            %d (alphabet size %d)\n", sigma, 1<<sigma)
	fmt.Printf("  quantile params:  %s\n", qp)
	return nil
}

// demoChars builds a small fixed plaintext database for the simulate
// command: a repeating pattern over the configured alphabet, long
// enough to fill 2^databaseBitsize - 1 characters.
func demoChars(databaseBitsize, sigma uint) []uint64 {
	n := (1 << databaseBitsize) - 1
	alphabet := uint64(1) << sigma
	chars := make([]uint64, n)
	for i := range chars {
		chars[i] = uint64(i*7+3) % alphabet
	}
	return chars
}

func bitAt(c uint64, b, sigma uint) uint64 {
	return (c >> (sigma - 1 - b)) & 1
}

func buildRankTables(chars []uint64, sigma uint) (tablesFlat []uint64, cols int) {
	l := len(chars)
	cols = l + 1
	tablesFlat = make([]uint64, int(sigma)*cols)
	current := append([]uint64(nil), chars...)
	for b := uint(0); b < sigma; b++ {
		row := tablesFlat[int(b)*cols : int(b)*cols+cols]
		var zeros, ones []uint64
		for i, c := range current {
			if bitAt(c, b, sigma) == 0 {
				row[i+1] = row[i] + 1
				zeros = append(zeros, c)
			} else {
				row[i+1] = row[i]
				ones = append(ones, c)
			}
		}
		current = append(zeros, ones...)
	}
	return tablesFlat, cols
}

func parseQuery(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	query := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid query character %q: %w", p, err)
		}
		query[i] = v
	}
	return query, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	query, err := parseQuery(queryStr)
	if err != nil {
		return err
	}

	chars := demoChars(databaseBitsize, sigma)
	tablesFlat, cols := buildRankTables(chars, sigma)

	fmiParams, err := fmi.NewParams(databaseBitsize, uint(len(query)), sigma)
	if err != nil {
		return err
	}
	ringParams, err := ring.NewParams(fmiParams.WM.DatabaseBitsize)
	if err != nil {
		return err
	}

	chls := testutil.NewInMemoryRing()
	defer testutil.CloseRing(chls)

	var instances [3]*rss.RSS
	for i := 0; i < 3; i++ {
		instances[i] = rss.New(party.ID(i), ringParams)
	}
	if err := testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) error { return instances[0].OnlineSetUp(c) },
		func(c *netio.Channels) error { return instances[1].OnlineSetUp(c) },
		func(c *netio.Channels) error { return instances[2].OnlineSetUp(c) },
	}); err != nil {
		return err
	}

	dpfParams, err := dpf.NewParams(databaseBitsize, 2)
	if err != nil {
		return err
	}
	keys, err := fmi.GenerateKeys(fmiParams, dpfParams, dpf.Iterative)
	if err != nil {
		return err
	}

	tableShares, err := fmi.ShareTables(ringParams, tablesFlat, int(sigma), cols)
	if err != nil {
		return err
	}

	queryBitsFlat := make([]uint64, len(query)*int(sigma))
	for i, c := range query {
		for b := uint(0); b < sigma; b++ {
			queryBitsFlat[i*int(sigma)+int(b)] = bitAt(c, b, sigma)
		}
	}
	queryShares, err := fmi.ShareQuery(ringParams, queryBitsFlat, len(query), int(sigma))
	if err != nil {
		return err
	}

	assStore := ass.NewStore(nil)
	ass1 := ass.New(ass.RoleFirst, ringParams, assStore)
	ass2 := ass.New(ass.RoleSecond, ringParams, assStore)

	var result [3]rss.Vec
	if err := testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[0])
			result[0], err = eval.EvaluateLPM(c, keys[0], nil, tableShares[0], queryShares[0], cols)
			return
		},
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[1])
			p := &cmp.Participant{ASS: ass1, Chl: c.Next, Peer: party.P2}
			result[1], err = eval.EvaluateLPM(c, keys[1], p, tableShares[1], queryShares[1], cols)
			return
		},
		func(c *netio.Channels) (err error) {
			eval := fmi.NewEvaluator(fmiParams, instances[2])
			p := &cmp.Participant{ASS: ass2, Chl: c.Prev, Peer: party.P1}
			result[2], err = eval.EvaluateLPM(c, keys[2], p, tableShares[2], queryShares[2], cols)
			return
		},
	}); err != nil {
		return err
	}

	var opened []uint64
	if err := testutil.RunRing(chls, [3]func(*netio.Channels) error{
		func(c *netio.Channels) (err error) { opened, err = instances[0].OpenVec(c, result[0]); return },
		func(c *netio.Channels) error { _, err := instances[1].OpenVec(c, result[1]); return err },
		func(c *netio.Channels) error { _, err := instances[2].OpenVec(c, result[2]); return err },
	}); err != nil {
		return err
	}

	lpmLength := 0
	for _, v := range opened {
		if v != 0 {
			break
		}
		lpmLength++
	}

	fmt.Printf("query: %v\n", query)
	fmt.Printf("per-position emptied-interval indicators: %v\n", opened)
	fmt.Printf("longest prefix match length: %d\n", lpmLength)
	return nil
}
