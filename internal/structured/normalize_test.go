package structured

import (
	"reflect"
	"testing"
)

func TestParseKeyValueChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "plain pairs",
			text: "semester=3 | mata_kuliah=Basis Data | sks=3 | nilai_huruf=A",
			want: map[string]string{"semester": "3", "mata_kuliah": "Basis Data", "sks": "3", "nilai_huruf": "A"},
		},
		{
			name: "label prefix dropped",
			text: "baris transkrip: semester=1 | sks=2",
			want: map[string]string{"semester": "1", "sks": "2"},
		},
		{
			name: "colon inside value kept",
			text: "hari=Senin | jam_mulai=07:30",
			want: map[string]string{"hari": "Senin", "jam_mulai": "07:30"},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseKeyValueChunk(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseKeyValueChunk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTranscriptRow(t *testing.T) {
	row, ok := NormalizeTranscriptRow("semester=3 | mata_kuliah=Struktur Data | sks=4 | nilai_huruf=a", "khs.pdf", 2)
	if !ok {
		t.Fatal("NormalizeTranscriptRow() ok = false")
	}
	want := TranscriptRow{Semester: 3, MataKuliah: "Struktur Data", SKS: 4, NilaiHuruf: "A", Source: "khs.pdf", Page: 2}
	if row != want {
		t.Errorf("row = %+v, want %+v", row, want)
	}

	if _, ok := NormalizeTranscriptRow("semester=3 | sks=4 | nilai_huruf=A", "khs.pdf", 1); ok {
		t.Error("row without course should be dropped")
	}
	if _, ok := NormalizeTranscriptRow("semester=x | mata_kuliah=Y | sks=4 | nilai_huruf=A", "khs.pdf", 1); ok {
		t.Error("row with unparseable semester should be dropped")
	}
}

func TestNormalizeScheduleRow(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ScheduleRow
		ok   bool
	}{
		{
			name: "explicit start and end",
			text: "hari=senin | jam_mulai=7.30 | jam_selesai=10:00 | mata_kuliah=Jaringan | ruangan=Lab 2",
			want: ScheduleRow{Hari: "Senin", JamMulai: "07:30", JamSelesai: "10:00", MataKuliah: "Jaringan", Ruangan: "Lab 2", Source: "krs.pdf", Page: 1},
			ok:   true,
		},
		{
			name: "combined jam range",
			text: "hari=Kamis | jam=13.00 - 15.30 | mata_kuliah=Etika Profesi",
			want: ScheduleRow{Hari: "Kamis", JamMulai: "13:00", JamSelesai: "15:30", MataKuliah: "Etika Profesi", Source: "krs.pdf", Page: 1},
			ok:   true,
		},
		{
			name: "reversed day letters",
			text: "hari=nineS | jam_mulai=08:00 | jam_selesai=09:40 | mata_kuliah=Kalkulus",
			want: ScheduleRow{Hari: "Senin", JamMulai: "08:00", JamSelesai: "09:40", MataKuliah: "Kalkulus", Source: "krs.pdf", Page: 1},
			ok:   true,
		},
		{
			name: "missing time is dropped",
			text: "hari=Senin | mata_kuliah=Kalkulus",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeScheduleRow(tt.text, "krs.pdf", 1)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("row = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeHHMM(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"7:30", "07:30"},
		{"07.30", "07:30"},
		{"jam 13:05 WIB", "13:05"},
		{"25:00", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeHHMM(tt.in); got != tt.want {
			t.Errorf("normalizeHHMM(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
