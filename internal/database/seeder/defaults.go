package seeder

func Defaults() []Seeder {
	return []Seeder{
		CommunitiesSeeder{},
		PostingsSeeder{Count: 250},
	}
}
