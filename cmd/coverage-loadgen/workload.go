package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// addresses spread over the three x partitions,
// used when no -addresses file is given
var defaultAddresses = []string{
	"8 bd du Port 80000 Amiens",
	"10 rue de Rivoli 75004 Paris",
	"1 place de la Comedie 34000 Montpellier",
	"2 quai des Chartrons 33000 Bordeaux",
	"12 rue de Siam 29200 Brest",
	"5 place Bellecour 69002 Lyon",
	"1 rue de la Republique 13001 Marseille",
	"3 place Kleber 67000 Strasbourg",
	"7 cours Mirabeau 13100 Aix-en-Provence",
	"9 place du Capitole 31000 Toulouse",
	"4 rue Nationale 59000 Lille",
	"6 place Stanislas 54000 Nancy",
}

func loadAddresses(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open addresses: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read addresses: %w", err)
	}
	return out, nil
}

// outcome buckets a response the way the API maps lookup results.
func outcome(status int, body string, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case status == 200 && strings.Contains(body, `"message"`):
		return "empty"
	case status == 200:
		return "covered"
	case status == 400:
		return "invalid"
	case status == 404:
		return "not_found"
	case status >= 500:
		return "server_error"
	default:
		return fmt.Sprintf("status_%d", status)
	}
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
