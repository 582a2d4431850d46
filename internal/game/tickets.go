package game

import (
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"

	"github.com/vhoang/loto-live/pkg/protocol"
)

// TicketGenerator produces 9x3 lô tô boards and serves as the room's number
// draw source. It is seeded so tests can pin the sequence; it is not safe
// for concurrent use and belongs to a single room goroutine.
type TicketGenerator struct {
	rng *rand.Rand
}

func NewTicketGenerator(seed uint64) *TicketGenerator {
	return &TicketGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate builds n tickets. Each ticket has 3 rows of 9 columns; every row
// carries 5 numbers, every column draws without replacement from its decade
// range, ascending down the column.
func (g *TicketGenerator) Generate(n int) []protocol.Ticket {
	tickets := make([]protocol.Ticket, 0, n)
	for i := 0; i < n; i++ {
		tickets = append(tickets, g.generateOne())
	}
	return tickets
}

func (g *TicketGenerator) generateOne() protocol.Ticket {
	var chosen [3][9]bool
	colCount := [9]int{}
	for row := 0; row < 3; row++ {
		for _, col := range g.rng.Perm(9)[:5] {
			chosen[row][col] = true
			colCount[col]++
		}
	}

	rows := make([][]int, 3)
	for row := range rows {
		rows[row] = make([]int, 9)
	}
	for col := 0; col < 9; col++ {
		if colCount[col] == 0 {
			continue
		}
		nums := g.sampleColumn(col, colCount[col])
		slices.Sort(nums)
		i := 0
		for row := 0; row < 3; row++ {
			if chosen[row][col] {
				rows[row][col] = nums[i]
				i++
			}
		}
	}
	return protocol.Ticket{ID: uuid.NewString(), Rows: rows}
}

// sampleColumn draws k distinct numbers from the column's range. Column 0
// covers 1..9, column 8 covers 80..90, the rest their decade.
func (g *TicketGenerator) sampleColumn(col, k int) []int {
	lo, hi := col*10, col*10+9
	if col == 0 {
		lo = 1
	}
	if col == 8 {
		hi = MaxNumber
	}
	pool := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		pool = append(pool, n)
	}
	g.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:k]
}

// Draw picks a random undrawn number from 1..MaxNumber; ok is false when
// the pool is exhausted.
func (g *TicketGenerator) Draw(called []int) (int, bool) {
	seen := make(map[int]bool, len(called))
	for _, n := range called {
		seen[n] = true
	}
	pool := make([]int, 0, MaxNumber)
	for n := 1; n <= MaxNumber; n++ {
		if !seen[n] {
			pool = append(pool, n)
		}
	}
	if len(pool) == 0 {
		return 0, false
	}
	return pool[g.rng.IntN(len(pool))], true
}

// HasWinningRow reports whether any ticket row is fully called (the lô tô
// "kinh": all five numbers of one row drawn).
func HasWinningRow(tickets []protocol.Ticket, called []int) bool {
	seen := make(map[int]bool, len(called))
	for _, n := range called {
		seen[n] = true
	}
	for _, t := range tickets {
		for _, row := range t.Rows {
			numbers, complete := 0, true
			for _, n := range row {
				if n == 0 {
					continue
				}
				numbers++
				if !seen[n] {
					complete = false
					break
				}
			}
			if complete && numbers > 0 {
				return true
			}
		}
	}
	return false
}
