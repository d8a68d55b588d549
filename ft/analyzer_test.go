// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package ft

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekjotsingh/idxexec/kv"
)

func TestSnowballAnalyzerStemsAndLowercases(t *testing.T) {
	a := NewSnowballAnalyzer("english")
	terms, err := a.Analyze("Running runners RUN")
	require.NoError(t, err)
	require.Equal(t, []string{"run", "runner", "run"}, terms)
}

func TestSnowballAnalyzerDefaultLanguage(t *testing.T) {
	a := NewSnowballAnalyzer("")
	require.Equal(t, "english", a.Language)
	require.Equal(t, "snowball:english", a.Name())
}

func TestTermsSetSubset(t *testing.T) {
	a := NewTermsSet(TermsList{"run", "fast"})
	b := NewTermsSet(TermsList{"run", "fast", "dog"})
	require.True(t, a.Subset(b))
	require.False(t, b.Subset(a))
}

func TestExtractQueryingTerms(t *testing.T) {
	a := NewSnowballAnalyzer("english")
	terms, set, err := ExtractQueryingTerms(a, "quick brown fox")
	require.NoError(t, err)
	require.Len(t, terms, 3)
	require.Len(t, set, 3)
}

func TestPostingListContainsNilSafe(t *testing.T) {
	var pl *PostingList
	require.False(t, pl.Contains(1))
}

func TestGetTermsDocsReusesSnappySnapshotForHotTerm(t *testing.T) {
	ix := NewIndex("book", NewSnowballAnalyzer("english"), nil, nil)
	require.NoError(t, ix.Put(1, "the quick brown fox"))
	require.NoError(t, ix.Put(2, "the slow brown dog"))

	first, err := ix.GetTermsDocs(context.Background(), nil, TermsList{"brown"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, map[kv.DocID]int{1: 1, 2: 1}, first[0].DocFreqs)

	_, cached := ix.snapshots["brown"]
	require.True(t, cached, "first resolution should populate the snapshot cache")

	second, err := ix.GetTermsDocs(context.Background(), nil, TermsList{"brown"})
	require.NoError(t, err)
	require.Equal(t, first[0].DocFreqs, second[0].DocFreqs)
	require.Equal(t, first[0].TotalDocs, second[0].TotalDocs)

	before := ix.snapshots["brown"]
	require.NoError(t, ix.Put(3, "brown leaves fall"))
	third, err := ix.GetTermsDocs(context.Background(), nil, TermsList{"brown"})
	require.NoError(t, err)
	require.NotEqual(t, before.data, ix.snapshots["brown"].data, "a Put touching the term must invalidate the cached snapshot")
	require.Equal(t, 3, third[0].TotalDocs)
}

func TestGetTermsDocsUnknownTermYieldsNilEntry(t *testing.T) {
	ix := NewIndex("book", NewSnowballAnalyzer("english"), nil, nil)
	require.NoError(t, ix.Put(1, "the quick brown fox"))

	docs, err := ix.GetTermsDocs(context.Background(), nil, TermsList{"zzz"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Nil(t, docs[0])
}
