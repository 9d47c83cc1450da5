// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerBound_Test(t *testing.T) {
	assert.True(t, MinLowerBound[intTime]().Test(-1000))
	assert.False(t, MaxLowerBound[intTime]().Test(1000))
	assert.True(t, InclusiveLowerBound[intTime](5).Test(5))
	assert.False(t, ExclusiveLowerBound[intTime](5).Test(5))
	assert.True(t, ExclusiveLowerBound[intTime](5).Test(6))
}

func TestUpperBound_Test(t *testing.T) {
	assert.False(t, MinUpperBound[intTime]().Test(-1000))
	assert.True(t, MaxUpperBound[intTime]().Test(1000))
	assert.True(t, InclusiveUpperBound[intTime](5).Test(5))
	assert.False(t, ExclusiveUpperBound[intTime](5).Test(5))
	assert.True(t, ExclusiveUpperBound[intTime](5).Test(4))
}

func TestLowerBound_Compare_TieBreak(t *testing.T) {
	// At equal time, Exclusive sorts above Inclusive for a lower bound (it
	// excludes more).
	incl := InclusiveLowerBound[intTime](5)
	excl := ExclusiveLowerBound[intTime](5)
	assert.Negative(t, incl.Compare(excl))
	assert.Positive(t, excl.Compare(incl))
	assert.Zero(t, incl.Compare(InclusiveLowerBound[intTime](5)))
}

func TestUpperBound_Compare_TieBreak(t *testing.T) {
	// At equal time, Exclusive sorts below Inclusive for an upper bound.
	incl := InclusiveUpperBound[intTime](5)
	excl := ExclusiveUpperBound[intTime](5)
	assert.Positive(t, incl.Compare(excl))
	assert.Negative(t, excl.Compare(incl))
}

func TestBound_MinMaxExtremes(t *testing.T) {
	assert.Negative(t, MinLowerBound[intTime]().Compare(InclusiveLowerBound[intTime](-1_000_000)))
	assert.Positive(t, MaxLowerBound[intTime]().Compare(InclusiveLowerBound[intTime](1_000_000)))
	assert.True(t, MaxLowerBound[intTime]().IsMax())
	assert.True(t, MaxUpperBound[intTime]().IsMax())
}

func TestMaxLowerMinUpper(t *testing.T) {
	a := InclusiveLowerBound[intTime](3)
	b := InclusiveLowerBound[intTime](7)
	assert.Equal(t, b, MaxLower(a, b))
	assert.Equal(t, a, MinLower(a, b))
	assert.Equal(t, a, MinLower(a, MaxLowerBound[intTime]()))

	ua := InclusiveUpperBound[intTime](3)
	ub := InclusiveUpperBound[intTime](7)
	assert.Equal(t, ua, MinUpper(ua, ub))
}

func TestBound_TimeAbsentForSentinels(t *testing.T) {
	_, ok := MinLowerBound[intTime]().Time()
	assert.False(t, ok)
	_, ok = MaxUpperBound[intTime]().Time()
	assert.False(t, ok)
	tv, ok := InclusiveLowerBound[intTime](9).Time()
	assert.True(t, ok)
	assert.Equal(t, intTime(9), tv)
}
