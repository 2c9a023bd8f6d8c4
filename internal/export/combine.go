package export

import (
	"slices"
	"time"
)

const (
	// alignRunLength is the number of consecutive equal records two
	// exports must share before they are considered overlapping.
	alignRunLength = 5
	// maxReordered bounds the window searched when two exports carry
	// the same records in a different order.
	maxReordered = 10
	// maxSkippable bounds how many records one export may be missing
	// before alignment is abandoned.
	maxSkippable = 3
	// sameRecordWindow is the timestamp slack allowed between copies of
	// the same record, covering timezone differences between phones.
	sameRecordWindow = 12 * time.Hour
	// reorderGap is the timestamp distance beyond which a mismatch is
	// treated as missing records rather than reordering.
	reorderGap = 24 * time.Hour
)

// sameRecord reports whether a and b are copies of the same transcript
// entry. Copies from different exports may disagree on timestamp by up
// to twelve hours.
func sameRecord(a, b Record) bool {
	d := a.Timestamp.Sub(b.Timestamp)
	if d < 0 {
		d = -d
	}
	if d > sameRecordWindow {
		return false
	}
	if a.Sender != b.Sender || a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindMedia {
		return sameMedia(a.Media, b.Media)
	}
	return a.Text == b.Text
}

// sameMedia compares attachments loosely. Paths are never compared
// since each export resolves against its own media directory, and a
// missing path on either side matches anything.
func sameMedia(a, b *Media) bool {
	if a.Caption != "" && b.Caption != "" && a.Caption != b.Caption {
		return false
	}
	if a.Path == "" || b.Path == "" {
		return true
	}
	return a.Type == b.Type
}

func cloneRecord(r Record) Record {
	if r.Media != nil {
		m := *r.Media
		r.Media = &m
	}
	return r
}

func cloneRecords(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = cloneRecord(r)
	}
	return out
}

// backfillMedia copies path and caption from src onto dst wherever dst
// is missing them. Exports differ here: one phone may have the media
// file, another the caption.
func backfillMedia(dst *Record, src Record) {
	if dst.Kind != KindMedia || src.Kind != KindMedia {
		return
	}
	if dst.Media.Path == "" && src.Media.Path != "" {
		dst.Media.Path = src.Media.Path
	}
	if dst.Media.Caption == "" && src.Media.Caption != "" {
		dst.Media.Caption = src.Media.Caption
	}
}

// findFirstOverlap locates the earliest positions at which msgs and
// combined share a run of alignRunLength equal records containing at
// least one non-media record. Media-only runs are too ambiguous to
// anchor on.
func findFirstOverlap(combined, msgs []Record) (msgStart, combinedStart int, ok bool) {
	for ms := 0; ms < len(msgs); ms++ {
		for cs := 0; cs < len(combined); cs++ {
			count := 0
			hasNonMedia := false
			for ms+count < len(msgs) && cs+count < len(combined) &&
				sameRecord(msgs[ms+count], combined[cs+count]) {
				if msgs[ms+count].Kind != KindMedia {
					hasNonMedia = true
				}
				count++
				if count >= alignRunLength && hasNonMedia {
					return ms, cs, true
				}
			}
		}
	}
	return 0, 0, false
}

// matchWindow tries to pair every record in msgs with a distinct record
// in combined, returning the pairing as combined offsets per msgs
// position. The search prefers lower combined offsets for earlier msgs
// positions, so the first valid pairing in lexicographic order wins.
func matchWindow(msgs, combined []Record) []int {
	n := len(msgs)
	perm := make([]int, 0, n)
	used := make([]bool, n)
	var extend func() bool
	extend = func() bool {
		j := len(perm)
		if j == n {
			return true
		}
		for k := 0; k < n; k++ {
			if used[k] || !sameRecord(msgs[j], combined[k]) {
				continue
			}
			used[k] = true
			perm = append(perm, k)
			if extend() {
				return true
			}
			perm = perm[:j]
			used[k] = false
		}
		return false
	}
	if extend() {
		return perm
	}
	return nil
}

// Combine merges exports of the same chat into one record sequence.
// Records that appear in several exports are deduplicated within a
// twelve hour timestamp window, with earlier chats taking priority on
// conflicts. The name comes from the first chat. A chat whose records
// interleave with the combined sequence without a qualifying overlap
// run is dropped.
//
// Combine sorts each input chat's records in place.
func Combine(chats []Chat) Chat {
	if len(chats) == 0 {
		return Chat{}
	}
	out := Chat{Name: chats[0].Name}
	for i := range chats {
		slices.SortStableFunc(chats[i].Records, func(a, b Record) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		for _, d := range chats[i].Directories {
			if !slices.Contains(out.Directories, d) {
				out.Directories = append(out.Directories, d)
			}
		}
	}

	var combined []Record
	var minTS, maxTS time.Time
	for ci := range chats {
		msgs := chats[ci].Records
		if len(msgs) == 0 {
			continue
		}
		if len(combined) == 0 {
			combined = cloneRecords(msgs)
			minTS = msgs[0].Timestamp
			maxTS = msgs[len(msgs)-1].Timestamp
			continue
		}

		msgStart, combStart, ok := findFirstOverlap(combined, msgs)
		if !ok {
			switch {
			case msgs[len(msgs)-1].Timestamp.Before(minTS):
				combined = append(cloneRecords(msgs), combined...)
				minTS = msgs[0].Timestamp
			case msgs[0].Timestamp.After(maxTS):
				combined = append(combined, cloneRecords(msgs)...)
				maxTS = msgs[len(msgs)-1].Timestamp
			}
			continue
		}

		// Records before the overlap predate everything seen so far.
		if msgStart > 0 {
			combined = slices.Insert(combined, 0, cloneRecords(msgs[:msgStart])...)
			minTS = msgs[0].Timestamp
		}

		combined = mergeOverlap(combined, msgs, msgStart, combStart)
		for _, r := range combined {
			if r.Timestamp.After(maxTS) {
				maxTS = r.Timestamp
			}
		}
	}

	out.Records = combined
	return out
}

// mergeOverlap walks msgs[msgStart:] against combined starting at the
// aligned position, deduplicating matches, backfilling media details,
// and splicing in records only one export has. When alignment is lost
// the rest of msgs is appended as-is.
func mergeOverlap(combined, msgs []Record, msgStart, combStart int) []Record {
	i := 0
	inserted := 0
walk:
	for msgStart+i < len(msgs) {
		m := msgs[msgStart+i]
		idx := i + msgStart + combStart + inserted
		if idx >= len(combined) {
			break
		}

		mismatch := !sameRecord(m, combined[idx]) &&
			m.Kind != KindSystem && combined[idx].Kind != KindSystem &&
			!(m.IsLocation() && combined[idx].IsLocation())
		if !mismatch {
			backfillMedia(&combined[idx], m)
			i++
			continue
		}

		if m.Timestamp.Sub(combined[idx].Timestamp) > reorderGap {
			// m is far ahead, so combined has records this export is
			// missing. Skip forward to m's copy if there is one.
			for j := 1; idx+j < len(combined); j++ {
				if sameRecord(m, combined[idx+j]) {
					inserted += j
					i++
					continue walk
				}
			}
		} else if combined[idx].Timestamp.Sub(m.Timestamp) > reorderGap {
			// m is far behind, so this export has records combined is
			// missing. Splice them in until the sequences meet again.
			toMatch := combined[idx]
			j := 0
			for msgStart+i < len(msgs) && !sameRecord(msgs[msgStart+i], toMatch) {
				combined = slices.Insert(combined, idx+j, cloneRecord(msgs[msgStart+i]))
				j++
				i++
			}
			continue
		}

		// The two exports may carry the same records in a different
		// order. Try pairing up growing windows.
		windowed := false
		for n := 2; n <= maxReordered; n++ {
			if idx+n >= len(combined) || msgStart+i+n >= len(msgs) {
				break
			}
			perm := matchWindow(msgs[msgStart+i:msgStart+i+n], combined[idx:idx+n])
			if perm == nil {
				continue
			}
			for j, k := range perm {
				backfillMedia(&combined[idx+k], msgs[msgStart+i+j])
			}
			i += n
			windowed = true
			break
		}
		if windowed {
			continue
		}

		// This export may have a few records combined is missing.
		skipped := false
		for j := 1; j <= maxSkippable; j++ {
			if msgStart+i+j >= len(msgs) {
				break
			}
			if sameRecord(msgs[msgStart+i+j], combined[idx]) {
				backfillMedia(&combined[idx], msgs[msgStart+i+j])
				for k := j - 1; k >= 0; k-- {
					combined = slices.Insert(combined, idx, cloneRecord(msgs[msgStart+i+k]))
				}
				i += j + 1
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}

		// Or combined may have a few records this export is missing.
		for j := 1; j <= maxSkippable; j++ {
			if idx+j >= len(combined) {
				break
			}
			if sameRecord(m, combined[idx+j]) {
				backfillMedia(&combined[idx+j], m)
				i++
				inserted += j
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}

		// Alignment lost.
		break
	}

	for _, r := range msgs[msgStart+i:] {
		combined = append(combined, cloneRecord(r))
	}
	return combined
}
