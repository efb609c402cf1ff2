package project

import (
	"log/slog"
)

// UpdateResult summarizes a reconcile pass.
type UpdateResult struct {
	Matched int // units carried over from the old map
	Fresh   int // units that need synthesis
	Removed int // old units with no counterpart
	Renamed int // audio files moved to a new index
}

// Update reconciles the project with a new sentence list. Every old unit whose
// sentence still appears is carried over together with its audio, even when it
// moved; duplicates are matched in order of appearance. Audio of old units that
// disappeared is removed, except where a new unit takes over the same index and
// keeps the file as stale audio until it is generated. Stale audio never moves
// with its unit.
func (p *Project) Update(sentences []string) (UpdateResult, error) {
	old := p.units.units

	reverse := make(map[string][]int, len(old))
	for _, u := range old {
		reverse[u.Sentence] = append(reverse[u.Sentence], u.Index)
	}

	var result UpdateResult
	var renames []rename
	var removals []string
	units := make([]Unit, len(sentences))
	consumed := make(map[int]bool, len(old))
	fresh := make(map[int]bool)
	seen := make(map[string]int, len(sentences))

	for newIndex, sentence := range sentences {
		k := seen[sentence]
		seen[sentence]++

		candidates := reverse[sentence]
		if k >= len(candidates) {
			units[newIndex] = newUnit(newIndex, sentence)
			fresh[newIndex] = true
			result.Fresh++
			continue
		}

		oldIndex := candidates[k]
		consumed[oldIndex] = true
		u := old[oldIndex]
		u.Index = newIndex
		switch {
		case u.AudioPath == "":
			if oldIndex != newIndex {
				// stale audio left at the old index belongs to no unit now
				removals = append(removals, AudioFileName(oldIndex))
			}
		case !fileExists(p.Path(u.AudioPath)):
			slog.Warn("audio file of matched unit is missing, marking for generation", "index", oldIndex, "audioPath", u.AudioPath)
			u.AudioPath = ""
			u.Generated = false
		default:
			u.AudioPath = AudioFileName(newIndex)
			if oldIndex != newIndex {
				renames = append(renames, rename{from: AudioFileName(oldIndex), to: AudioFileName(newIndex)})
			}
		}
		units[newIndex] = u
		result.Matched++
	}

	for _, u := range old {
		if consumed[u.Index] {
			continue
		}
		result.Removed++
		if fresh[u.Index] {
			// the new unit at this index keeps the file as stale audio
			continue
		}
		removals = append(removals, AudioFileName(u.Index))
	}

	if err := applyRenames(p.dir, renames, removals); err != nil {
		return result, err
	}
	result.Renamed = len(renames)

	p.units.replace(units)
	if err := p.Save(); err != nil {
		return result, err
	}
	if err := p.WriteBookText(); err != nil {
		return result, err
	}

	slog.Info("Updated project", "dir", p.dir, "matched", result.Matched, "fresh", result.Fresh, "removed", result.Removed, "renamed", result.Renamed)
	return result, nil
}
