package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lendhub.GO/config"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	lendingEntity "lendhub.GO/model/entity/lending"
)

var seedCmd = &cobra.Command{
	Use:   "lending:seed",
	Short: "Create the schema and a few sample inventory pools",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}
		if err := db.AutoMigrate(
			&lendingEntity.InventoryPool{},
			&lendingEntity.LoanRequest{},
			&enrollmentEntity.EnrollmentWindow{},
			&enrollmentEntity.ProjectApplication{},
		); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			return
		}

		pools := []lendingEntity.InventoryPool{
			{ResourceID: "BK-ALGO-01", Kind: lendingEntity.KindLibraryItem, Name: "Introduction to Algorithms", Location: "Library shelf C4", TotalQuantity: 5, AvailableQuantity: 5},
			{ResourceID: "BK-OS-02", Kind: lendingEntity.KindLibraryItem, Name: "Operating System Concepts", Location: "Library shelf B1", TotalQuantity: 3, AvailableQuantity: 3},
			{ResourceID: "LAB-ARDUINO", Kind: lendingEntity.KindLabComponent, Name: "Arduino Uno R3", Location: "Electronics lab", TotalQuantity: 10, AvailableQuantity: 10},
			{ResourceID: "LAB-RPI4", Kind: lendingEntity.KindLabComponent, Name: "Raspberry Pi 4", Location: "Electronics lab", TotalQuantity: 4, AvailableQuantity: 4},
		}
		created := 0
		for i := range pools {
			res := db.Where("resource_id = ?", pools[i].ResourceID).FirstOrCreate(&pools[i])
			if res.Error != nil {
				fmt.Printf("Seeding %s failed: %v\n", pools[i].ResourceID, res.Error)
				return
			}
			created += int(res.RowsAffected)
		}
		fmt.Printf("Schema migrated, %d pool(s) created (%d already present).\n", created, len(pools)-created)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
