package service

import "sort"

// ── 共同空闲时间 ─────────────────────────────────────────────
//
// 以分钟表示一天中的时刻（0..1440）。
// 流程：排序合并忙碌区间 → 裁剪到窗口 → 取补集得到空闲区间 → 双指针求交 → 丢弃过短区间。
// ─────────────────────────────────────────────────────────────

// span 半开区间 [Start, End)，单位：分钟
type span struct {
	Start int
	End   int
}

// mergeSpans 合并重叠或首尾相接的区间
func mergeSpans(in []span) []span {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]span, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []span{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// freeSpans 返回窗口内 busy 的补集
func freeSpans(busy []span, window span) []span {
	var free []span
	cursor := window.Start
	for _, b := range mergeSpans(busy) {
		if b.End <= window.Start || b.Start >= window.End {
			continue
		}
		if b.Start > cursor {
			free = append(free, span{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		free = append(free, span{Start: cursor, End: window.End})
	}
	return free
}

// intersectSpans 双指针求两组有序不相交区间的交集
func intersectSpans(a, b []span) []span {
	var out []span
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if start < end {
			out = append(out, span{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

// mutualFree 计算两人在窗口内的共同空闲时间，丢弃短于 minMinutes 的区间
func mutualFree(aBusy, bBusy []span, window span, minMinutes int) []span {
	common := intersectSpans(freeSpans(aBusy, window), freeSpans(bBusy, window))
	out := make([]span, 0, len(common))
	for _, s := range common {
		if s.End-s.Start >= minMinutes {
			out = append(out, s)
		}
	}
	return out
}
