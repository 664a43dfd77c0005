package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/emc2314/cczero/pkg/network"
	"github.com/emc2314/cczero/pkg/nncache"
	"github.com/emc2314/cczero/pkg/search"
)

func movesToString(moves []xiangqi.Move) string {
	s := make([]string, len(moves))
	for i, m := range moves {
		s[i] = m.String()
	}
	return strings.Join(s, " ")
}

func main() {
	profile := termenv.ColorProfile()
	info := termenv.Style{}.Foreground(profile.Color("3"))
	best := termenv.Style{}.Foreground(profile.Color("2")).Bold()

	net, err := network.NewNetwork("random", nil)
	if err != nil {
		fmt.Println(best.Styled(fmt.Sprintf("network: %v", err)))
		return
	}
	cache := nncache.New(1<<16, zerolog.Nop())

	tree := search.NewNodeTree()
	const threads = 4
	opts := search.DefaultSearchOptions().
		SetMiniBatchSize(16).
		SetCpuct(2.5)
	limits := search.DefaultLimits().SetMovetime(2000)

	s := search.New(tree, net, cache, opts, limits, zerolog.Nop())
	s.SetThinkingInfoFunc(func(ti search.ThinkingInfo) {
		fmt.Println(info.Styled(fmt.Sprintf(
			"info depth %d visits %d nps %d eval %.3f pv %s",
			ti.Depth, ti.Visits, ti.Nps, ti.Eval, movesToString(ti.PV))))
	})
	s.SetBestMoveInfoFunc(func(bm search.BestMoveInfo) {
		fmt.Println(best.Styled(fmt.Sprintf("bestmove %s eval %.3f", bm.Move, bm.Eval)))
	})

	s.StartThreads(threads)
	time.Sleep(2200 * time.Millisecond)
	s.Stop()
}
