// Command bench_pcg solves a 1-D Laplacian across several cluster shapes
// and prints the virtual solve time for each configuration.
package main

import (
	"fmt"
	"strconv"

	"github.com/unixpickle/essentials"

	"github.com/lsandvik/dist-cg/grid"
	"github.com/lsandvik/dist-cg/pcg"
)

// RunInfo describes one cluster configuration.
type RunInfo struct {
	Rows    int
	Parts   int
	Latency float64
	Rate    float64
}

// Run solves A*x = A*ones on the configured cluster and returns the
// virtual solve time, iteration count and final relative residual.
func (r *RunInfo) Run(precondition bool) (float64, int, float64) {
	cluster := pcg.NewCluster(r.Parts, r.Latency, r.Rate)
	stats := make([]*pcg.Stats, r.Parts)

	essentials.Must(cluster.Run(func(cx *pcg.Ctx, rank int) {
		g := grid.NewGeometry(r.Rows, r.Parts, rank)
		ml := pcg.NewLaplace1D(g, depth(r.Rows, r.Parts))
		a := ml.Fine()

		ones := pcg.NewVector(g, a.NumGhosts())
		ones.Fill(1.0)
		b := pcg.NewVector(g, 0)
		pcg.SPMV(cx, a, ones, b)

		x := pcg.NewVector(g, 0)
		stats[rank] = pcg.Solve(cx, ml, pcg.NewCGData(ml), b, x, 100, 1e-9, precondition)
	}))

	s := stats[0]
	return s.Times[pcg.TimeTotal], s.Iterations, s.NormR / s.NormR0
}

func depth(rows, parts int) int {
	d := 1
	for rows%2 == 0 && (rows/2)%parts == 0 && rows/2 >= parts {
		d++
		rows /= 2
	}
	return d
}

func main() {
	runs := []RunInfo{
		{Rows: 256, Parts: 2, Latency: 1e-4, Rate: 1e6},
		{Rows: 256, Parts: 8, Latency: 1e-4, Rate: 1e6},
		{Rows: 1024, Parts: 8, Latency: 1e-4, Rate: 1e6},
		{Rows: 1024, Parts: 8, Latency: 1e-3, Rate: 1e6},
		{Rows: 1024, Parts: 32, Latency: 1e-4, Rate: 1e9},
		{Rows: 4096, Parts: 32, Latency: 1e-4, Rate: 1e9},
	}

	fmt.Println("| Rows | Parts | Latency | Rate | CG time | iters | MG time | iters |")
	fmt.Println("|:--|:--|:--|:--|:--|:--|:--|:--|")
	for _, run := range runs {
		fmt.Printf(
			"| %d | %d | %s | %s ",
			run.Rows,
			run.Parts,
			strconv.FormatFloat(run.Latency, 'f', -1, 64),
			strconv.FormatFloat(run.Rate, 'E', -1, 64),
		)
		for _, precondition := range []bool{false, true} {
			elapsed, iters, _ := run.Run(precondition)
			fmt.Printf("| %f | %d ", elapsed, iters)
		}
		fmt.Println("|")
	}
}
